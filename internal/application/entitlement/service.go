// Package entitlement 处理支付回调带来的提案配额变更
package entitlement

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/domain/repository"
	apperrors "ideaforge-api/pkg/errors"
	"ideaforge-api/pkg/logger"
	"ideaforge-api/pkg/metrics"
)

// EventCheckoutCompleted 唯一会改变配额的事件类型
const EventCheckoutCompleted = "checkout.session.completed"

const signaturePrefix = "sha256="

// CheckoutEvent 已解析的支付回调
type CheckoutEvent struct {
	Type        string
	SessionID   string
	UserID      string
	PackSize    int
	AmountCents int64
	Currency    string
	Raw         []byte
}

// Outcome 回调处理结果
type Outcome struct {
	Applied   bool
	Duplicate bool
	Ignored   bool
}

// Service 配额服务
type Service struct {
	tx           repository.Transactor
	profiles     repository.ProfileRepository
	transactions repository.PaymentTransactionRepository
	secret       []byte
}

// NewService 创建配额服务
func NewService(tx repository.Transactor, profiles repository.ProfileRepository, transactions repository.PaymentTransactionRepository, secret string) *Service {
	return &Service{tx: tx, profiles: profiles, transactions: transactions, secret: []byte(secret)}
}

// Sign 计算 payload 的签名头
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature 校验签名头，未配置密钥时拒绝所有回调
func (s *Service) VerifySignature(payload []byte, header string) error {
	if len(s.secret) == 0 || !strings.HasPrefix(header, signaturePrefix) {
		return apperrors.ErrSignatureInvalid
	}
	if !hmac.Equal([]byte(Sign(s.secret, payload)), []byte(header)) {
		return apperrors.ErrSignatureInvalid
	}
	return nil
}

// Apply 记录流水并增加配额；同一会话只生效一次
func (s *Service) Apply(ctx context.Context, evt CheckoutEvent) (Outcome, error) {
	if evt.Type != EventCheckoutCompleted {
		metrics.EntitlementGrants.WithLabelValues("ignored").Inc()
		return Outcome{Ignored: true}, nil
	}
	if evt.SessionID == "" || evt.UserID == "" || evt.PackSize <= 0 {
		return Outcome{}, apperrors.ErrInvalidParam.WithDetail("checkout event requires session id, user id and a positive pack size")
	}
	ctx = logger.WithContext(ctx, logger.UserIDKey, evt.UserID)

	txn := &entity.PaymentTransaction{
		ID:                uuid.NewString(),
		UserID:            evt.UserID,
		ProviderSessionID: evt.SessionID,
		PackSize:          evt.PackSize,
		AmountCents:       evt.AmountCents,
		Currency:          evt.Currency,
		Status:            "completed",
	}
	if len(evt.Raw) > 0 {
		txn.Payload = datatypes.JSON(evt.Raw)
	}

	var outcome Outcome
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.transactions.Create(ctx, txn); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				outcome.Duplicate = true
				return nil
			}
			return err
		}
		rows, err := s.profiles.IncrementExtraSubmissions(ctx, evt.UserID, evt.PackSize)
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperrors.ErrProfileNotFound
		}
		outcome.Applied = true
		return nil
	})
	if err != nil {
		metrics.EntitlementGrants.WithLabelValues("failed").Inc()
		if apperrors.IsAppError(err) {
			return Outcome{}, err
		}
		return Outcome{}, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to apply checkout")
	}

	if outcome.Duplicate {
		metrics.EntitlementGrants.WithLabelValues("duplicate").Inc()
		logger.Info(ctx, "checkout already applied", "session_id", evt.SessionID)
		return outcome, nil
	}
	metrics.EntitlementGrants.WithLabelValues("applied").Inc()
	logger.Info(ctx, "extra submissions granted", "session_id", evt.SessionID, "pack_size", evt.PackSize)
	return outcome, nil
}
