package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is a shopper rating of an approved listing.
type Review struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID  uuid.UUID `gorm:"column:listing_id;type:uuid;not null;index;uniqueIndex:reviews_listing_author_key"`
	AuthorID   uuid.UUID `gorm:"column:author_id;type:uuid;not null;uniqueIndex:reviews_listing_author_key"`
	AuthorName string    `gorm:"column:author_name;not null"`
	Rating     int       `gorm:"column:rating;not null"`
	Comment    string    `gorm:"column:comment;not null;default:''"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
