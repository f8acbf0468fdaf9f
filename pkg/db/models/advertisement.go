package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

// Advertisement is a promotional card shown in the public carousel once approved.
type Advertisement struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID        uuid.UUID              `gorm:"column:vendor_id;type:uuid;not null;index"`
	VendorEmail     string                 `gorm:"column:vendor_email;not null"`
	Title           string                 `gorm:"column:title;not null"`
	Description     string                 `gorm:"column:description;not null;default:''"`
	ImageURL        string                 `gorm:"column:image_url;not null;default:''"`
	Status          enums.ModerationStatus `gorm:"column:status;type:moderation_status;not null;default:'pending'"`
	RejectionReason *string                `gorm:"column:rejection_reason"`
	Feedback        *string                `gorm:"column:feedback"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
