package models

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	RecipientID uuid.UUID `gorm:"not null;index" json:"recipient_id"`
	Kind        string    `gorm:"size:30;not null" json:"kind"`
	Preview     string    `gorm:"size:255" json:"preview"`
	Link        string    `gorm:"size:255" json:"link"`
	IsRead      bool      `gorm:"default:false" json:"is_read"`

	Recipient User `gorm:"foreignkey:RecipientID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
