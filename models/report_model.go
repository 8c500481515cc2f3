package models

import (
	"time"

	"github.com/google/uuid"
)

// Report is a moderation flag raised by a user against a listing or another
// user. Exactly one of ListingID / ReportedUserID is set.
type Report struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ReporterID     uuid.UUID  `gorm:"not null" json:"reporter_id"`
	ListingID      *uuid.UUID `json:"listing_id"`
	ReportedUserID *uuid.UUID `json:"reported_user_id"`
	Reason         string     `gorm:"size:50;not null" json:"reason"`
	Details        string     `gorm:"type:text" json:"details"`
	Status         string     `gorm:"size:20;not null;default:'open'" json:"status"`
	Resolution     *string    `gorm:"type:text" json:"resolution"`

	Reporter User `gorm:"foreignkey:ReporterID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
