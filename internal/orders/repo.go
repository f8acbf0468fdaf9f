package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrder inserts the order and its lines.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("id = ?", orderID).
		Take(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns orders newest first. A nil purchaserID lists everyone's.
func (r *repository) ListOrders(ctx context.Context, purchaserID *uuid.UUID, limit, offset int) ([]models.Order, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if purchaserID != nil {
			return db.Where("purchaser_id = ?", *purchaserID)
		}
		return db
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Scopes(scope).
		Preload("Lines").
		Order("order_date DESC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	return orders, total, err
}

// MarkApproved moves a pending order to approved. It reports the number of
// rows changed; zero means the order was not pending.
func (r *repository) MarkApproved(ctx context.Context, orderID, decidedBy uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":     enums.OrderStatusApproved,
			"decided_at": at,
			"decided_by": decidedBy,
		})
	return res.RowsAffected, res.Error
}
