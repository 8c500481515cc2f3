package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type Listing struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	StoreID     uuid.UUID `gorm:"not null" json:"store_id"`
	SellerID    uuid.UUID `gorm:"not null" json:"seller_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Slug        string    `gorm:"size:80;not null;unique" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	Category    string    `gorm:"size:50;not null" json:"category"`
	Condition   string    `gorm:"size:20;not null;default:'used'" json:"condition"`
	Currency    string    `gorm:"size:3;not null;default:'USD'" json:"currency"`
	Price       float64   `gorm:"type:numeric(10,2);not null" json:"price"`

	SalePrice    *float64   `gorm:"type:numeric(10,2)" json:"sale_price"`
	SaleStartsAt *time.Time `json:"sale_starts_at"`
	SaleEndsAt   *time.Time `json:"sale_ends_at"`

	Status    string `gorm:"size:20;not null;default:'active'" json:"status"`
	ViewCount int64  `gorm:"default:0" json:"view_count"`

	RatingAverage float64 `gorm:"type:numeric(3,2);default:0.00" json:"rating_average"`
	RatingCount   int64   `gorm:"default:0" json:"rating_count"`

	Store  Store          `gorm:"foreignkey:StoreID" json:"-"`
	Seller User           `gorm:"foreignkey:SellerID" json:"-"`
	Images []ListingImage `json:"images,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaleActive reports whether the listing's sale window covers now.
func (l *Listing) SaleActive(now time.Time) bool {
	if l.SalePrice == nil || *l.SalePrice <= 0 || *l.SalePrice >= l.Price {
		return false
	}
	if l.SaleStartsAt != nil && now.Before(*l.SaleStartsAt) {
		return false
	}
	if l.SaleEndsAt != nil && now.After(*l.SaleEndsAt) {
		return false
	}
	return true
}

// CurrentPrice returns the effective price, taking an active sale into account.
func (l *Listing) CurrentPrice(now time.Time) float64 {
	if l.SaleActive(now) {
		return *l.SalePrice
	}
	return l.Price
}

// DiscountPercent returns the rounded sale discount, 0 when no sale is active.
func (l *Listing) DiscountPercent(now time.Time) int {
	if !l.SaleActive(now) || l.Price <= 0 {
		return 0
	}
	return int(math.Round((l.Price - *l.SalePrice) / l.Price * 100))
}

type ListingImage struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ListingID uuid.UUID `gorm:"not null" json:"listing_id"`
	URL       string    `gorm:"size:255;not null" json:"url"`
	Position  int       `gorm:"default:0" json:"position"`

	CreatedAt time.Time `json:"created_at"`
}
