package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

// PlaceOrderInput orders one product. A zero Quantity means one.
type PlaceOrderInput struct {
	ProductID uuid.UUID
	Quantity  int
}

type LineDTO struct {
	ProductID  uuid.UUID       `json:"product_id"`
	Name       string          `json:"name"`
	MarketName string          `json:"market_name"`
	ImageURL   string          `json:"image_url"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

type OrderDTO struct {
	ID             uuid.UUID         `json:"id"`
	PurchaserID    uuid.UUID         `json:"purchaser_id"`
	PurchaserEmail string            `json:"purchaser_email"`
	Status         enums.OrderStatus `json:"status"`
	TotalPrice     decimal.Decimal   `json:"total_price"`
	OrderDate      time.Time         `json:"order_date"`
	DecidedAt      *time.Time        `json:"decided_at,omitempty"`
	Lines          []LineDTO         `json:"lines"`
}

func FromModel(m *models.Order) *OrderDTO {
	if m == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:             m.ID,
		PurchaserID:    m.PurchaserID,
		PurchaserEmail: m.PurchaserEmail,
		Status:         m.Status,
		TotalPrice:     m.TotalPrice,
		OrderDate:      m.OrderDate,
		DecidedAt:      m.DecidedAt,
		Lines:          make([]LineDTO, 0, len(m.Lines)),
	}
	for _, line := range m.Lines {
		dto.Lines = append(dto.Lines, LineDTO{
			ProductID:  line.ProductID,
			Name:       line.Name,
			MarketName: line.MarketName,
			ImageURL:   line.ImageURL,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
			LineTotal:  line.LineTotal,
		})
	}
	return dto
}
