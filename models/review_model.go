package models

import (
	"time"

	"github.com/google/uuid"
)

type Review struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ListingID uuid.UUID `gorm:"not null;index:idx_review_listing_buyer,unique" json:"listing_id"`
	BuyerID   uuid.UUID `gorm:"not null;index:idx_review_listing_buyer,unique" json:"buyer_id"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`

	Listing Listing `gorm:"foreignkey:ListingID" json:"-"`
	Buyer   User    `gorm:"foreignkey:BuyerID" json:"buyer,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
