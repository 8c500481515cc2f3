package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/maximusartimus/am-marketplace-sub000/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStore backs the Store contract with Postgres through GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FetchConversation(ctx context.Context, id uuid.UUID) (Conversation, error) {
	var row models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Listing").
		Preload("Listing.Images").
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, fmt.Errorf("fetch conversation: %w", err)
	}
	return conversationFromRow(row), nil
}

func (s *GormStore) FetchOtherParticipant(ctx context.Context, id uuid.UUID) (Identity, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return Identity{}, fmt.Errorf("fetch participant: %w", err)
	}
	return Identity{ID: user.ID, Name: user.FullName}, nil
}

func (s *GormStore) FetchMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	var rows []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	messages := make([]Message, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, messageFromRow(row))
	}
	return messages, nil
}

func (s *GormStore) MarkMessagesRead(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id IN ?", ids).
		Update("is_read", true).Error
}

func (s *GormStore) InsertMessage(ctx context.Context, conversationID, senderID uuid.UUID, body string) (Message, error) {
	row := models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return messageFromRow(row), nil
}

func (s *GormStore) TouchConversation(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", gorm.Expr("NOW()")).Error
}

func (s *GormStore) CreateNotification(ctx context.Context, recipientID uuid.UUID, kind, preview, link string) error {
	row := models.Notification{
		RecipientID: recipientID,
		Kind:        kind,
		Preview:     preview,
		Link:        link,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Conversation{}).Error
	})
}

func conversationFromRow(row models.Conversation) Conversation {
	summary := ListingSummary{
		ID:    row.Listing.ID,
		Title: row.Listing.Title,
		Price: row.Listing.Price,
	}
	if len(row.Listing.Images) > 0 {
		summary.ImageURL = row.Listing.Images[0].URL
	}
	return Conversation{
		ID:        row.ID,
		ListingID: row.ListingID,
		BuyerID:   row.BuyerID,
		SellerID:  row.SellerID,
		Status:    row.Status,
		Listing:   summary,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func messageFromRow(row models.Message) Message {
	return Message{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		SenderID:       row.SenderID,
		Body:           row.Body,
		IsRead:         row.IsRead,
		CreatedAt:      row.CreatedAt,
	}
}
