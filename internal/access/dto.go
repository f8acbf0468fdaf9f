package access

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

// AccountDTO is the transport shape of an account.
type AccountDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        enums.Role `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Identity is what the identity provider tells us about a caller.
type Identity struct {
	AccountID   uuid.UUID
	Email       string
	DisplayName string
}

func FromModel(a *models.Account) *AccountDTO {
	if a == nil {
		return nil
	}
	return &AccountDTO{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		Role:        a.Role,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}
