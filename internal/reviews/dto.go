package reviews

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketwatch-backend/pkg/db/models"
)

const (
	MinRating = 1
	MaxRating = 5
)

type ReviewDTO struct {
	ID         uuid.UUID `json:"id"`
	ListingID  uuid.UUID `json:"listing_id"`
	AuthorID   uuid.UUID `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

func FromModel(m *models.Review) ReviewDTO {
	return ReviewDTO{
		ID:         m.ID,
		ListingID:  m.ListingID,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		Rating:     m.Rating,
		Comment:    m.Comment,
		CreatedAt:  m.CreatedAt,
	}
}

// RatingDTO is the review aggregate of one listing. AverageRating is zero
// when there are no reviews.
type RatingDTO struct {
	ListingID     uuid.UUID       `json:"listing_id"`
	AverageRating decimal.Decimal `json:"average_rating"`
	Count         int64           `json:"count"`
}

// Average is the mean of the ratings rounded half away from zero to one
// decimal.
func Average(sum, count int64) decimal.Decimal {
	if count <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(count), 8).Round(1)
}

type SubmitInput struct {
	Rating  int
	Comment string
}
