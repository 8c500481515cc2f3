package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/maximusartimus/am-marketplace-sub000/database"
	"github.com/maximusartimus/am-marketplace-sub000/models"
	"github.com/maximusartimus/am-marketplace-sub000/notifications"
)

// SendUnreadDigests emails users who have messages that sat unread for
// over a day, one digest per user.
func SendUnreadDigests() {
	log.Println("Running job: SendUnreadDigests...")

	cutoff := time.Now().Add(-24 * time.Hour)

	type digestRow struct {
		UserID   string
		FullName string
		Email    string
		Unread   int64
	}
	var rows []digestRow

	err := database.DB.Model(&models.Message{}).
		Select("users.id as user_id, users.full_name, users.email, COUNT(messages.id) as unread").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Joins("JOIN users ON users.id = CASE WHEN messages.sender_id = conversations.buyer_id THEN conversations.seller_id ELSE conversations.buyer_id END").
		Where("messages.is_read = ? AND messages.created_at < ? AND users.is_active = ?", false, cutoff, true).
		Group("users.id, users.full_name, users.email").
		Scan(&rows).Error
	if err != nil {
		log.Printf("Error collecting unread digests: %v", err)
		return
	}

	for _, row := range rows {
		log.Printf("Sending unread digest to %s (%d unread)", row.UserID, row.Unread)
		go notifications.SendEmail(
			row.FullName,
			row.Email,
			"You have unread messages",
			fmt.Sprintf("<h1>Unread messages</h1><p>You have %d unread message(s) waiting in your marketplace inbox.</p>", row.Unread),
		)
	}
}
