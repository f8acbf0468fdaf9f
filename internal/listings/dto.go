package listings

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketwatch-backend/internal/pricing"
	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketwatch-backend/pkg/errors"
)

// ListingDTO is the transport shape of a listing. PriceHistory is only
// populated on single-listing reads.
type ListingDTO struct {
	ID                uuid.UUID                `json:"id"`
	VendorID          uuid.UUID                `json:"vendor_id"`
	VendorEmail       string                   `json:"vendor_email"`
	VendorName        string                   `json:"vendor_name"`
	ItemName          string                   `json:"item_name"`
	MarketName        string                   `json:"market_name"`
	MarketDescription string                   `json:"market_description"`
	ItemDescription   string                   `json:"item_description"`
	ImageURL          string                   `json:"image_url"`
	Price             decimal.Decimal          `json:"price"`
	Status            enums.ModerationStatus   `json:"status"`
	RejectionReason   *string                  `json:"rejection_reason,omitempty"`
	Feedback          *string                  `json:"feedback,omitempty"`
	PriceHistory      []pricing.ObservationDTO `json:"price_history,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

func FromModel(m *models.Listing) *ListingDTO {
	if m == nil {
		return nil
	}
	return &ListingDTO{
		ID:                m.ID,
		VendorID:          m.VendorID,
		VendorEmail:       m.VendorEmail,
		VendorName:        m.VendorName,
		ItemName:          m.ItemName,
		MarketName:        m.MarketName,
		MarketDescription: m.MarketDescription,
		ItemDescription:   m.ItemDescription,
		ImageURL:          m.ImageURL,
		Price:             m.PriceCurrent,
		Status:            m.Status,
		RejectionReason:   m.RejectionReason,
		Feedback:          m.Feedback,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// SubmitInput is a new listing. ObservedOn dates the seed observation and
// defaults to today.
type SubmitInput struct {
	ItemName          string
	MarketName        string
	MarketDescription string
	ItemDescription   string
	ImageURL          string
	Price             decimal.Decimal
	ObservedOn        time.Time
}

func (in SubmitInput) normalize() (SubmitInput, error) {
	in.ItemName = strings.TrimSpace(in.ItemName)
	in.MarketName = strings.TrimSpace(in.MarketName)
	in.MarketDescription = strings.TrimSpace(in.MarketDescription)
	in.ItemDescription = strings.TrimSpace(in.ItemDescription)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	missing := []string{}
	if in.ItemName == "" {
		missing = append(missing, "item_name")
	}
	if in.MarketName == "" {
		missing = append(missing, "market_name")
	}
	if len(missing) > 0 {
		return in, pkgerrors.New(pkgerrors.CodeValidation, "required fields are missing").
			WithDetails(map[string]any{"missing": missing})
	}
	if err := pricing.ValidatePrice(in.Price); err != nil {
		return in, err
	}
	return in, nil
}

// PricePoint is an explicit dated price appended on update.
type PricePoint struct {
	Date  time.Time
	Price decimal.Decimal
}

// UpdateInput is a vendor content edit. Nil fields are left unchanged.
// PriceHistory entries are appended in order, then Price (dated ObservedOn
// or today) is appended last.
type UpdateInput struct {
	ItemName          *string
	MarketName        *string
	MarketDescription *string
	ItemDescription   *string
	ImageURL          *string
	Price             *decimal.Decimal
	ObservedOn        *time.Time
	PriceHistory      []PricePoint
}

func (in UpdateInput) contentColumns() (map[string]any, []string, error) {
	cols := map[string]any{}
	fields := []string{}
	set := func(column string, value *string, required bool) error {
		if value == nil {
			return nil
		}
		trimmed := strings.TrimSpace(*value)
		if required && trimmed == "" {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "%s cannot be blank", column)
		}
		cols[column] = trimmed
		fields = append(fields, column)
		return nil
	}
	for _, f := range []struct {
		column   string
		value    *string
		required bool
	}{
		{"item_name", in.ItemName, true},
		{"market_name", in.MarketName, true},
		{"market_description", in.MarketDescription, false},
		{"item_description", in.ItemDescription, false},
		{"image_url", in.ImageURL, false},
	} {
		if err := set(f.column, f.value, f.required); err != nil {
			return nil, nil, err
		}
	}
	return cols, fields, nil
}

func (in UpdateInput) pricePoints(today time.Time) ([]PricePoint, error) {
	points := make([]PricePoint, 0, len(in.PriceHistory)+1)
	points = append(points, in.PriceHistory...)
	if in.Price != nil {
		date := today
		if in.ObservedOn != nil && !in.ObservedOn.IsZero() {
			date = *in.ObservedOn
		}
		points = append(points, PricePoint{Date: date, Price: *in.Price})
	}
	for _, p := range points {
		if err := pricing.ValidatePrice(p.Price); err != nil {
			return nil, err
		}
	}
	return points, nil
}

// SortPrice orders public listings by current price.
type SortPrice string

const (
	SortNone      SortPrice = ""
	SortPriceAsc  SortPrice = "asc"
	SortPriceDesc SortPrice = "desc"
)

func ParseSortPrice(value string) (SortPrice, error) {
	switch SortPrice(strings.ToLower(strings.TrimSpace(value))) {
	case SortNone:
		return SortNone, nil
	case SortPriceAsc:
		return SortPriceAsc, nil
	case SortPriceDesc:
		return SortPriceDesc, nil
	default:
		return SortNone, pkgerrors.Newf(pkgerrors.CodeValidation, "sortPrice must be asc or desc, got %q", value)
	}
}

// PublicFilter narrows the approved catalog.
type PublicFilter struct {
	Page        int
	Limit       int
	SortPrice   SortPrice
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Market      string
	Query       string
}
