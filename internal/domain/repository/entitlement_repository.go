package repository

import (
	"context"

	"ideaforge-api/internal/domain/entity"
)

// ProfileRepository 用户资料仓储接口
type ProfileRepository interface {
	// GetByID 根据用户 ID 获取资料，不存在时返回 nil, nil
	GetByID(ctx context.Context, userID string) (*entity.UserProfile, error)

	// IncrementExtraSubmissions 原子增加额外提案配额，返回受影响行数
	IncrementExtraSubmissions(ctx context.Context, userID string, delta int) (int64, error)
}

// PaymentTransactionRepository 支付流水仓储接口
type PaymentTransactionRepository interface {
	// Create 写入流水，会话 ID 重复时返回 ErrDuplicate
	Create(ctx context.Context, txn *entity.PaymentTransaction) error

	// GetBySessionID 根据支付会话 ID 获取，不存在时返回 nil, nil
	GetBySessionID(ctx context.Context, sessionID string) (*entity.PaymentTransaction, error)
}
