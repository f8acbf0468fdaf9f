package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

// ObservationDTO is one entry of a listing price history.
type ObservationDTO struct {
	Date     string          `json:"date"`
	Price    decimal.Decimal `json:"price"`
	Sequence int64           `json:"sequence"`
}

type HistoryDTO struct {
	ListingID    uuid.UUID        `json:"listing_id"`
	Observations []ObservationDTO `json:"observations"`
}

// TrendDTO summarizes a listing price series.
type TrendDTO struct {
	ListingID    uuid.UUID       `json:"listing_id"`
	Trend        decimal.Decimal `json:"trend"`
	FirstPrice   decimal.Decimal `json:"first_price"`
	LastPrice    decimal.Decimal `json:"last_price"`
	FirstDate    string          `json:"first_date,omitempty"`
	LastDate     string          `json:"last_date,omitempty"`
	Observations int             `json:"observations"`
}

// ComparisonDTO compares the current price of a listing to its price on a
// reference date.
type ComparisonDTO struct {
	ListingID      uuid.UUID            `json:"listing_id"`
	ItemName       string               `json:"item_name"`
	MarketName     string               `json:"market_name"`
	ReferenceDate  string               `json:"reference_date"`
	ReferencePrice decimal.Decimal      `json:"reference_price"`
	CurrentPrice   decimal.Decimal      `json:"current_price"`
	Difference     decimal.Decimal      `json:"difference"`
	Change         decimal.Decimal      `json:"change"`
	Direction      enums.PriceDirection `json:"direction"`
}

// CompareResult lists the comparable listings. Listings without an
// observation on or before the reference date are left out.
type CompareResult struct {
	ReferenceDate string          `json:"reference_date"`
	Items         []ComparisonDTO `json:"items"`
}

func ObservationFromModel(m models.PriceObservation) ObservationDTO {
	return ObservationDTO{
		Date:     Day(m.ObservedOn).Format(DateLayout),
		Price:    m.Price,
		Sequence: m.ID,
	}
}

func toObservations(rows []models.PriceObservation) []Observation {
	out := make([]Observation, 0, len(rows))
	for _, row := range rows {
		out = append(out, Observation{Date: row.ObservedOn, Price: row.Price, Seq: row.ID})
	}
	return out
}
