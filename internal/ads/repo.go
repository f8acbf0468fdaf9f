package ads

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, ad *models.Advertisement) error {
	return r.db.WithContext(ctx).Create(ad).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Advertisement, error) {
	var ad models.Advertisement
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&ad).Error; err != nil {
		return nil, err
	}
	return &ad, nil
}

func (r *Repository) UpdateColumns(ctx context.Context, id uuid.UUID, cols map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Advertisement{}).Where("id = ?", id).Updates(cols)
	return res.RowsAffected, res.Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Advertisement{})
	return res.RowsAffected, res.Error
}

// List returns ads newest first. A nil vendorID or status disables that filter.
func (r *Repository) List(ctx context.Context, vendorID *uuid.UUID, status *enums.ModerationStatus, limit, offset int) ([]models.Advertisement, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if vendorID != nil {
			db = db.Where("vendor_id = ?", *vendorID)
		}
		if status != nil {
			db = db.Where("status = ?", *status)
		}
		return db
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Advertisement{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Advertisement
	err := r.db.WithContext(ctx).Scopes(scope).Order("created_at DESC").Order("id ASC").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, total, err
}

func (r *Repository) CountPendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Advertisement{}).
		Where("status = ? AND updated_at < ?", enums.ModerationPending, cutoff.UTC()).
		Count(&count).Error
	return count, err
}
