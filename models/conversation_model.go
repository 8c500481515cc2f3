package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation ties one buyer and one seller to a listing. Exactly one
// conversation exists per (listing, buyer) pair.
type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ListingID uuid.UUID `gorm:"not null;index:idx_conversation_listing_buyer,unique" json:"listing_id"`
	BuyerID   uuid.UUID `gorm:"not null;index:idx_conversation_listing_buyer,unique" json:"buyer_id"`
	SellerID  uuid.UUID `gorm:"not null" json:"seller_id"`
	Status    string    `gorm:"size:20;not null;default:'open'" json:"status"`

	Listing  Listing   `gorm:"foreignkey:ListingID" json:"listing,omitempty"`
	Buyer    User      `gorm:"foreignkey:BuyerID" json:"-"`
	Seller   User      `gorm:"foreignkey:SellerID" json:"-"`
	Messages []Message `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasParticipant reports whether the given user is the buyer or the seller.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.BuyerID == userID || c.SellerID == userID
}

// OtherParticipant returns the counterparty of the given user.
func (c *Conversation) OtherParticipant(userID uuid.UUID) uuid.UUID {
	if c.BuyerID == userID {
		return c.SellerID
	}
	return c.BuyerID
}
