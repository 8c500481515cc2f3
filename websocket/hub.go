package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/maximusartimus/am-marketplace-sub000/chat"
	"github.com/google/uuid"
)

// The hub is the live change feed for message inserts: every committed
// message is published here and fanned out, in arrival order, to the
// subscriptions open against its conversation id. Delivery happens on the
// hub goroutine, so subscribers see events serialized.

type subscription struct {
	conversationID uuid.UUID
	onInsert       func(chat.Message)
	once           sync.Once
}

// Unsubscribe detaches the subscription. Safe to call more than once.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		subscribersMu.Lock()
		if set, ok := subscribers[s.conversationID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(subscribers, s.conversationID)
			}
		}
		subscribersMu.Unlock()
	})
}

var (
	subscribers   = make(map[uuid.UUID]map[*subscription]struct{})
	subscribersMu sync.RWMutex
	Broadcast     = make(chan chat.Message, 64)
)

// Feed returns the chat.Feed backed by this hub.
func Feed() chat.Feed {
	return hubFeed{}
}

type hubFeed struct{}

func (hubFeed) Subscribe(conversationID uuid.UUID, onInsert func(chat.Message)) (chat.Subscription, error) {
	sub := &subscription{conversationID: conversationID, onInsert: onInsert}
	subscribersMu.Lock()
	set, ok := subscribers[conversationID]
	if !ok {
		set = make(map[*subscription]struct{})
		subscribers[conversationID] = set
	}
	set[sub] = struct{}{}
	subscribersMu.Unlock()
	return sub, nil
}

// Publish hands a committed message insert to the hub.
func Publish(m chat.Message) {
	Broadcast <- m
}

// RunHub drains the broadcast channel and delivers each insert to the
// conversation's subscribers. Run it once, as a goroutine, at startup.
func RunHub() {
	for message := range Broadcast {
		subscribersMu.RLock()
		targets := make([]*subscription, 0, len(subscribers[message.ConversationID]))
		for sub := range subscribers[message.ConversationID] {
			targets = append(targets, sub)
		}
		subscribersMu.RUnlock()

		for _, sub := range targets {
			sub.onInsert(message)
		}
		log.Printf("hub: delivered message %s to %d subscriber(s)", message.ID, len(targets))
	}
}

// PublishingStore wraps a chat.Store so every acknowledged message insert
// is also announced on the hub. This is what makes the feed observe the
// record store: sessions and REST handlers both write through it.
type PublishingStore struct {
	chat.Store
}

func (p PublishingStore) InsertMessage(ctx context.Context, conversationID, senderID uuid.UUID, body string) (chat.Message, error) {
	msg, err := p.Store.InsertMessage(ctx, conversationID, senderID, body)
	if err != nil {
		return chat.Message{}, err
	}
	Publish(msg)
	return msg, nil
}
