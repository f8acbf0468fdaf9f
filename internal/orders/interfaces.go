package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
)

// Repository defines persistence operations for the order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, purchaserID *uuid.UUID, limit, offset int) ([]models.Order, int64, error)
	MarkApproved(ctx context.Context, orderID, decidedBy uuid.UUID, at time.Time) (int64, error)
}

// ListingReader resolves the product being ordered.
type ListingReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
}
