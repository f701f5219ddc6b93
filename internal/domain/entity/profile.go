package entity

import (
	"time"

	"gorm.io/datatypes"
)

// UserProfile 用户资料，记录额外的提案配额
type UserProfile struct {
	ID               string    `json:"id" gorm:"primaryKey;type:uuid"`
	DisplayName      string    `json:"display_name"`
	ExtraSubmissions int       `json:"extra_submissions" gorm:"not null;default:0"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName 表名
func (UserProfile) TableName() string {
	return "profiles"
}

// PaymentTransaction 一次已完成的结账记录
type PaymentTransaction struct {
	ID                string         `json:"id" gorm:"primaryKey;type:uuid"`
	UserID            string         `json:"user_id" gorm:"type:uuid;index"`
	ProviderSessionID string         `json:"provider_session_id" gorm:"uniqueIndex"`
	PackSize          int            `json:"pack_size"`
	AmountCents       int64          `json:"amount_cents"`
	Currency          string         `json:"currency" gorm:"size:8"`
	Status            string         `json:"status" gorm:"size:20"`
	Payload           datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb"`
	CreatedAt         time.Time      `json:"created_at"`
}

// TableName 表名
func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}
