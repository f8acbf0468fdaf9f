package merchants

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
)

type RequestDTO struct {
	ID              uuid.UUID              `json:"id"`
	AccountID       uuid.UUID              `json:"account_id"`
	AccountEmail    string                 `json:"account_email"`
	ShopName        string                 `json:"shop_name"`
	ShopDescription string                 `json:"shop_description"`
	Status          enums.ModerationStatus `json:"status"`
	RejectionReason *string                `json:"rejection_reason,omitempty"`
	Feedback        *string                `json:"feedback,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func FromModel(m *models.MerchantRequest) *RequestDTO {
	if m == nil {
		return nil
	}
	return &RequestDTO{
		ID:              m.ID,
		AccountID:       m.AccountID,
		AccountEmail:    m.AccountEmail,
		ShopName:        m.ShopName,
		ShopDescription: m.ShopDescription,
		Status:          m.Status,
		RejectionReason: m.RejectionReason,
		Feedback:        m.Feedback,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

type SubmitInput struct {
	ShopName        string
	ShopDescription string
}

func (in SubmitInput) normalize() (SubmitInput, error) {
	in.ShopName = strings.TrimSpace(in.ShopName)
	in.ShopDescription = strings.TrimSpace(in.ShopDescription)
	if in.ShopName == "" {
		return in, pkgerrors.New(pkgerrors.CodeValidation, "shop name is required")
	}
	return in, nil
}
