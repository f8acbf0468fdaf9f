package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

// Order is a historical receipt. Lines are written once with the order.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaserID    uuid.UUID         `gorm:"column:purchaser_id;type:uuid;not null;index"`
	PurchaserEmail string            `gorm:"column:purchaser_email;not null"`
	Status         enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	TotalPrice     decimal.Decimal   `gorm:"column:total_price;type:numeric(12,2);not null"`
	OrderDate      time.Time         `gorm:"column:order_date;not null"`
	DecidedAt      *time.Time        `gorm:"column:decided_at"`
	DecidedBy      *uuid.UUID        `gorm:"column:decided_by;type:uuid"`
	Lines          []OrderLine       `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
}

// OrderLine snapshots the purchased listing at order time.
type OrderLine struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID  uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Name       string          `gorm:"column:name;not null"`
	MarketName string          `gorm:"column:market_name;not null"`
	ImageURL   string          `gorm:"column:image_url;not null;default:''"`
	UnitPrice  decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity   int             `gorm:"column:quantity;not null"`
	LineTotal  decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
}
