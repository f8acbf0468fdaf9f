package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

// Account is the canonical identity record. Role changes only through an admin action.
type Account struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email       string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	DisplayName string     `gorm:"column:display_name;not null;default:''"`
	Role        enums.Role `gorm:"column:role;type:account_role;not null;default:'user'"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Account) TableName() string { return "accounts" }
