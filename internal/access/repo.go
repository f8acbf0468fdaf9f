package access

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

// Repository exposes account persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an accounts repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// InsertIfAbsent creates the account unless one already exists with the same
// id or email.
func (r *Repository) InsertIfAbsent(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(account).Error
}

// FindByID retrieves the account with id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByEmail retrieves the account with the given lower-cased email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateRole sets the account role.
func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role enums.Role) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"role": role, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// AccountFilter narrows an account listing. Query matches a substring of the
// email or display name, case insensitively.
type AccountFilter struct {
	Role  *enums.Role
	Query string
}

// List returns accounts ordered by email.
func (r *Repository) List(ctx context.Context, f AccountFilter, limit, offset int) ([]models.Account, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if f.Role != nil {
			db = db.Where("role = ?", *f.Role)
		}
		if q := strings.TrimSpace(f.Query); q != "" {
			pattern := "%" + strings.ToLower(q) + "%"
			db = db.Where("(LOWER(email) LIKE ? OR LOWER(display_name) LIKE ?)", pattern, pattern)
		}
		return db
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Account{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Account
	err := r.db.WithContext(ctx).Scopes(filter).Order("email ASC").Limit(limit).Offset(offset).Find(&rows).Error
	return rows, total, err
}
