package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/maximusartimus/am-marketplace-sub000/chat"
	config "github.com/maximusartimus/am-marketplace-sub000/configs"
	"github.com/maximusartimus/am-marketplace-sub000/database"
	"github.com/maximusartimus/am-marketplace-sub000/middleware"
	"github.com/maximusartimus/am-marketplace-sub000/models"
	"github.com/maximusartimus/am-marketplace-sub000/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

func sessionStore() chat.Store {
	return websocket.PublishingStore{Store: chat.NewGormStore(database.DB)}
}

type conversationSummary struct {
	models.Conversation
	LastMessage *models.Message `json:"last_message"`
	UnreadCount int64           `json:"unread_count"`
}

func GetMyConversations(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("page_size", "20"))
	offset := (page - 1) * pageSize

	var conversations []models.Conversation
	if err := database.DB.
		Preload("Listing").
		Preload("Listing.Images").
		Where("buyer_id = ? OR seller_id = ?", userID, userID).
		Order("updated_at desc").
		Limit(pageSize).
		Offset(offset).
		Find(&conversations).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch conversations"})
	}

	summaries := make([]conversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summary := conversationSummary{Conversation: conv}

		var last models.Message
		if err := database.DB.
			Where("conversation_id = ?", conv.ID).
			Order("created_at desc").
			First(&last).Error; err == nil {
			summary.LastMessage = &last
		}

		database.DB.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conv.ID, userID, false).
			Count(&summary.UnreadCount)

		summaries = append(summaries, summary)
	}

	return c.JSON(summaries)
}

func CreateOrGetConversation(c *fiber.Ctx) error {
	buyerID := middleware.CurrentUserID(c)

	type Request struct {
		ListingID string `json:"listing_id" validate:"required,uuid"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	listingID, _ := uuid.Parse(req.ListingID)

	var listing models.Listing
	if err := database.DB.Where("id = ? AND status = ?", listingID, "active").First(&listing).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Listing not found"})
	}
	if listing.SellerID == buyerID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "You cannot contact yourself about your own listing"})
	}

	var conversation models.Conversation
	err := database.DB.
		Where("listing_id = ? AND buyer_id = ?", listingID, buyerID).
		First(&conversation).Error
	if err == nil {
		return c.JSON(conversation)
	}

	conversation = models.Conversation{
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  listing.SellerID,
	}
	if err := database.DB.Create(&conversation).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create conversation"})
	}

	return c.Status(fiber.StatusCreated).JSON(conversation)
}

func GetConversationMessages(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	conversationID, err := uuid.Parse(c.Params("conversationId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	store := sessionStore()
	conv, err := store.FetchConversation(c.Context(), conversationID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch conversation"})
	}
	if !conv.HasParticipant(userID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You are not a participant of this conversation"})
	}

	messages, err := store.FetchMessages(c.Context(), conversationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch messages"})
	}

	// The requester is looking at the transcript, so the counterparty's
	// unread messages become read. Best-effort.
	var unread []uuid.UUID
	for _, m := range messages {
		if m.SenderID != userID && !m.IsRead {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) > 0 {
		if err := store.MarkMessagesRead(c.Context(), unread); err != nil {
			log.Printf("Failed to mark messages read in %s: %v", conversationID, err)
		}
	}

	return c.JSON(fiber.Map{"conversation": conv, "messages": messages})
}

func SendConversationMessage(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	conversationID, err := uuid.Parse(c.Params("conversationId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	type Request struct {
		Body string `json:"body" validate:"required,min=1,max=4000"`
	}
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Cannot parse JSON"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var user models.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	session := chat.NewSession(sessionStore(), websocket.Feed(), chat.Identity{ID: userID, Name: user.FullName}, conversationID)
	defer session.Close()
	if err := session.Open(c.Context()); err != nil {
		return sessionError(c, err)
	}

	msg, err := session.Send(c.Context(), req.Body)
	if err != nil {
		return sessionError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func DeleteConversation(c *fiber.Ctx) error {
	userID := middleware.CurrentUserID(c)
	conversationID, err := uuid.Parse(c.Params("conversationId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation ID"})
	}

	var user models.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	session := chat.NewSession(sessionStore(), websocket.Feed(), chat.Identity{ID: userID, Name: user.FullName}, conversationID)
	defer session.Close()
	if err := session.Open(c.Context()); err != nil {
		return sessionError(c, err)
	}
	if err := session.Delete(c.Context()); err != nil {
		return sessionError(c, err)
	}

	return c.JSON(fiber.Map{"message": "Conversation deleted"})
}

func sessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	case errors.Is(err, chat.ErrAccessDenied):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You are not a participant of this conversation"})
	case errors.Is(err, chat.ErrEmptyBody):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Message body is empty"})
	case errors.Is(err, chat.ErrSendInFlight):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "A send is already in flight"})
	case errors.Is(err, chat.ErrSendFailed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to send message, please retry"})
	case errors.Is(err, chat.ErrDeleteFailed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to delete conversation, please retry"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

// Websocket frames exchanged on /ws/conversations/:id. The server streams
// the loaded transcript, then every append; the client sends message and
// delete commands.
type wsCommand struct {
	Type string `json:"type"`
	Body string `json:"body,omitempty"`
}

type wsFrame struct {
	Type         string             `json:"type"`
	Conversation *chat.Conversation `json:"conversation,omitempty"`
	Other        *chat.Identity     `json:"other,omitempty"`
	Messages     []chat.Message     `json:"messages,omitempty"`
	Message      *chat.Message      `json:"message,omitempty"`
	Error        string             `json:"error,omitempty"`
	Draft        string             `json:"draft,omitempty"`
}

// ServeConversationWs hosts one conversation session over a websocket.
// The first client frame must be {"type":"auth","token":...}; after a
// successful open the transcript is streamed and the socket accepts
// send/delete commands until either side goes away. The session's feed
// subscription is released exactly once on teardown.
func ServeConversationWs(c *websocketcontrib.Conn) {
	conversationID, err := uuid.Parse(c.Params("conversationId"))
	if err != nil {
		_ = c.WriteJSON(wsFrame{Type: "error", Error: "Invalid conversation ID"})
		c.Close()
		return
	}

	type authMessage struct {
		Type  string `json:"type"`
		Token string `json:"token"`
	}
	var auth authMessage
	if err := c.ReadJSON(&auth); err != nil || auth.Type != "auth" {
		log.Printf("WebSocket auth failed: invalid or missing auth message: %v", err)
		_ = c.WriteJSON(wsFrame{Type: "error", Error: "Invalid or missing auth message"})
		c.Close()
		return
	}

	claims, err := parseToken(auth.Token)
	if err != nil {
		log.Printf("WebSocket auth failed: invalid token: %v", err)
		_ = c.WriteJSON(wsFrame{Type: "error", Error: "Invalid token"})
		c.Close()
		return
	}
	userID, err := uuid.Parse(claims["user_id"].(string))
	if err != nil {
		_ = c.WriteJSON(wsFrame{Type: "error", Error: "Invalid user ID"})
		c.Close()
		return
	}

	var user models.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		_ = c.WriteJSON(wsFrame{Type: "error", Error: "User not found"})
		c.Close()
		return
	}

	session := chat.NewSession(sessionStore(), websocket.Feed(), chat.Identity{ID: userID, Name: user.FullName}, conversationID)

	// Socket writes happen from both this goroutine and the hub's delivery
	// goroutine, so they go through a channel drained by one writer. The
	// channel is never closed: the writer stops on quit, and push gives up
	// once the writer is gone. Teardown closes the session first, so the
	// hub stops delivering before the writer goes away.
	outbound := make(chan wsFrame, 32)
	quit := make(chan struct{})
	writerDone := make(chan struct{})
	defer func() {
		session.Close()
		close(quit)
		<-writerDone
		c.Close()
	}()

	go func() {
		defer close(writerDone)
		for {
			select {
			case frame := <-outbound:
				if err := c.WriteJSON(frame); err != nil {
					log.Printf("WebSocket write failed for %s: %v", userID, err)
					return
				}
			case <-quit:
				// Flush whatever is already queued, then stop.
				for {
					select {
					case frame := <-outbound:
						if err := c.WriteJSON(frame); err != nil {
							return
						}
					default:
						return
					}
				}
			}
		}
	}()

	push := func(frame wsFrame) {
		select {
		case outbound <- frame:
		case <-writerDone:
		}
	}

	session.OnAppend = func(m chat.Message) {
		msg := m
		push(wsFrame{Type: "message", Message: &msg})
	}

	if err := session.Open(context.Background()); err != nil {
		kind := "error"
		if errors.Is(err, chat.ErrNotFound) {
			kind = "not_found"
		} else if errors.Is(err, chat.ErrAccessDenied) {
			kind = "access_denied"
		}
		push(wsFrame{Type: kind, Error: err.Error()})
		return
	}

	snap := session.Snapshot()
	push(wsFrame{
		Type:         "ready",
		Conversation: &snap.Conversation,
		Other:        &snap.Other,
		Messages:     snap.Transcript,
	})

	for {
		var cmd wsCommand
		if err := c.ReadJSON(&cmd); err != nil {
			if websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseAbnormalClosure) {
				log.Printf("WebSocket closed for client %s: %v", userID, err)
			} else {
				log.Printf("WebSocket read error for client %s: %v", userID, err)
			}
			return
		}

		switch cmd.Type {
		case "send":
			if _, err := session.Send(context.Background(), cmd.Body); err != nil {
				push(wsFrame{Type: "send_failed", Error: err.Error(), Draft: session.Draft()})
			}
		case "delete":
			if err := session.Delete(context.Background()); err != nil {
				push(wsFrame{Type: "delete_failed", Error: err.Error()})
				continue
			}
			push(wsFrame{Type: "deleted"})
			return
		default:
			push(wsFrame{Type: "error", Error: fmt.Sprintf("unknown command %q", cmd.Type)})
		}
	}
}

func parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.Config("JWT_SECRET")), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
