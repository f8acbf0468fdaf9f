package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

// MerchantRequest is a shopper's application to become a vendor.
type MerchantRequest struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID       uuid.UUID              `gorm:"column:account_id;type:uuid;not null;index"`
	AccountEmail    string                 `gorm:"column:account_email;not null"`
	ShopName        string                 `gorm:"column:shop_name;not null"`
	ShopDescription string                 `gorm:"column:shop_description;not null;default:''"`
	Status          enums.ModerationStatus `gorm:"column:status;type:moderation_status;not null;default:'pending'"`
	RejectionReason *string                `gorm:"column:rejection_reason"`
	Feedback        *string                `gorm:"column:feedback"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
