package models

import (
	"time"

	"github.com/google/uuid"
)

type Store struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OwnerID     uuid.UUID `gorm:"not null;unique" json:"owner_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Slug        string    `gorm:"size:80;not null;unique" json:"slug"`
	Description *string   `gorm:"type:text" json:"description"`
	LogoURL     *string   `gorm:"size:255" json:"logo_url"`
	BannerURL   *string   `gorm:"size:255" json:"banner_url"`
	CatalogURL  *string   `gorm:"size:255" json:"catalog_url"`

	Owner    User      `gorm:"foreignkey:OwnerID" json:"-"`
	Listings []Listing `json:"listings,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
