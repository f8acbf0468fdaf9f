package merchants

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

// pendingIndex is the partial unique index allowing one open request per account.
const pendingIndex = "merchant_requests_one_pending_idx"

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, req *models.MerchantRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MerchantRequest, error) {
	var req models.MerchantRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// ListByStatus returns requests oldest first so the queue is worked in order.
func (r *Repository) ListByStatus(ctx context.Context, status enums.ModerationStatus, limit, offset int) ([]models.MerchantRequest, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		return db.Where("status = ?", status)
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.MerchantRequest{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.MerchantRequest
	err := r.db.WithContext(ctx).Scopes(scope).Order("created_at ASC").Order("id ASC").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, total, err
}

func (r *Repository) CountPendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MerchantRequest{}).
		Where("status = ? AND created_at < ?", enums.ModerationPending, cutoff.UTC()).
		Count(&count).Error
	return count, err
}
