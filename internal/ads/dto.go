package ads

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
)

type AdDTO struct {
	ID              uuid.UUID              `json:"id"`
	VendorID        uuid.UUID              `json:"vendor_id"`
	VendorEmail     string                 `json:"vendor_email"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	ImageURL        string                 `json:"image_url"`
	Status          enums.ModerationStatus `json:"status"`
	RejectionReason *string                `json:"rejection_reason,omitempty"`
	Feedback        *string                `json:"feedback,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func FromModel(m *models.Advertisement) *AdDTO {
	if m == nil {
		return nil
	}
	return &AdDTO{
		ID:              m.ID,
		VendorID:        m.VendorID,
		VendorEmail:     m.VendorEmail,
		Title:           m.Title,
		Description:     m.Description,
		ImageURL:        m.ImageURL,
		Status:          m.Status,
		RejectionReason: m.RejectionReason,
		Feedback:        m.Feedback,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

type SubmitInput struct {
	Title       string
	Description string
	ImageURL    string
}

func (in SubmitInput) normalize() (SubmitInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.Title == "" {
		return in, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	return in, nil
}

// UpdateInput edits ad content. Nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	ImageURL    *string
}

func (in UpdateInput) columns() (map[string]any, error) {
	cols := map[string]any{}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be blank")
		}
		cols["title"] = title
	}
	if in.Description != nil {
		cols["description"] = strings.TrimSpace(*in.Description)
	}
	if in.ImageURL != nil {
		cols["image_url"] = strings.TrimSpace(*in.ImageURL)
	}
	if len(cols) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no changes supplied")
	}
	return cols, nil
}
