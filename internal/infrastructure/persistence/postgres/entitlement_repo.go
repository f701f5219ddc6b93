package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ideaforge-api/internal/domain/entity"
	"ideaforge-api/internal/domain/repository"
)

// ProfileRepository 用户资料仓储实现
type ProfileRepository struct {
	client *Client
}

// NewProfileRepository 创建用户资料仓储
func NewProfileRepository(client *Client) *ProfileRepository {
	return &ProfileRepository{client: client}
}

// GetByID 根据用户 ID 获取资料
func (r *ProfileRepository) GetByID(ctx context.Context, userID string) (*entity.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "postgres.ProfileRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var profile entity.UserProfile
	if err := db.First(&profile, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// IncrementExtraSubmissions 原子增加额外提案配额
func (r *ProfileRepository) IncrementExtraSubmissions(ctx context.Context, userID string, delta int) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.ProfileRepository.IncrementExtraSubmissions")
	defer span.End()

	db := getDB(ctx, r.client.db)

	result := db.Model(&entity.UserProfile{}).
		Where("id = ?", userID).
		Update("extra_submissions", gorm.Expr("extra_submissions + ?", delta))
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to increment extra submissions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// PaymentTransactionRepository 支付流水仓储实现
type PaymentTransactionRepository struct {
	client *Client
}

// NewPaymentTransactionRepository 创建支付流水仓储
func NewPaymentTransactionRepository(client *Client) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{client: client}
}

// Create 写入流水；会话 ID 已存在时不写入并返回 ErrDuplicate，事务保持可用
func (r *PaymentTransactionRepository) Create(ctx context.Context, txn *entity.PaymentTransaction) error {
	ctx, span := tracer.Start(ctx, "postgres.PaymentTransactionRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)

	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_session_id"}},
		DoNothing: true,
	}).Create(txn)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return repository.ErrDuplicate
		}
		span.RecordError(result.Error)
		return fmt.Errorf("failed to create payment transaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrDuplicate
	}
	return nil
}

// GetBySessionID 根据支付会话 ID 获取
func (r *PaymentTransactionRepository) GetBySessionID(ctx context.Context, sessionID string) (*entity.PaymentTransaction, error) {
	ctx, span := tracer.Start(ctx, "postgres.PaymentTransactionRepository.GetBySessionID")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var txn entity.PaymentTransaction
	if err := db.First(&txn, "provider_session_id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get payment transaction: %w", err)
	}
	return &txn, nil
}
