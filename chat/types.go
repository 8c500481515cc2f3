package chat

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the minimal display identity of a participant.
type Identity struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ListingSummary is the slice of listing data a conversation view needs.
type ListingSummary struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Price    float64   `json:"price"`
	ImageURL string    `json:"image_url"`
}

// Conversation is the typed record a session operates on, parsed from
// storage rows at the boundary.
type Conversation struct {
	ID        uuid.UUID      `json:"id"`
	ListingID uuid.UUID      `json:"listing_id"`
	BuyerID   uuid.UUID      `json:"buyer_id"`
	SellerID  uuid.UUID      `json:"seller_id"`
	Status    string         `json:"status"`
	Listing   ListingSummary `json:"listing"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (c Conversation) HasParticipant(id uuid.UUID) bool {
	return c.BuyerID == id || c.SellerID == id
}

func (c Conversation) OtherParticipant(id uuid.UUID) uuid.UUID {
	if c.BuyerID == id {
		return c.SellerID
	}
	return c.BuyerID
}

// Message is the typed record for one transcript entry. IsRead is
// recipient-scoped: true means the non-sender has seen it.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Body           string    `json:"body"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// validFor rejects malformed rows instead of letting them into the
// transcript: a message must carry an id and be authored by one of the
// conversation's two participants.
func (m Message) validFor(c Conversation) bool {
	if m.ID == uuid.Nil {
		return false
	}
	if m.ConversationID != c.ID {
		return false
	}
	return c.HasParticipant(m.SenderID)
}
