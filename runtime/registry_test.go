package runtime

import (
	"context"
	"order-chat/contract"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type Sink struct {
	name string
}

func (s Sink) Consume(ctx context.Context, e event.Event) error {
	return nil
}

func TestRegistry_Subscribe_One_Chat_One_Subscriber(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	subscriberID := uuid.NewString()
	chatID := chat.ChatID("chat-x")
	sink := Sink{name: "ws-1"}

	// Given nobody is connected
	req.Empty(registry.sessions)
	req.Empty(registry.chatMembers)

	// When a subscriber joins a chat
	registry.Subscribe(subscriberID, chatID, sink)

	// Then
	req.Len(registry.sessions, 1)
	req.Equal(sink, registry.sessions[subscriberID])
	req.Contains(registry.chatMembers[chatID], subscriberID)
	req.Equal([]contract.EventSink{sink}, registry.GetSinksForChat(chatID))
}

func TestRegistry_Subscribe_One_Chat_Multiple_Subscribers(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	chatID := chat.ChatID("chat-x")

	registry.Subscribe(uuid.NewString(), chatID, Sink{name: "customer"})
	registry.Subscribe(uuid.NewString(), chatID, Sink{name: "vendor"})
	registry.Subscribe(uuid.NewString(), "chat-y", Sink{name: "other"})

	req.Len(registry.GetSinksForChat(chatID), 2)
	req.Contains(registry.GetSinksForChat(chatID), Sink{name: "vendor"})
	chats, subscribers := registry.Count()
	req.Equal(2, chats)
	req.Equal(3, subscribers)
}

func TestRegistry_Unsubscribe_Last_Subscriber(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	subscriberID := uuid.NewString()
	chatID := chat.ChatID("chat-x")

	registry.Subscribe(subscriberID, chatID, Sink{name: "ws-1"})

	// When the only subscriber leaves
	registry.Unsubscribe(subscriberID, chatID)

	// Then the chat entry is gone
	req.Empty(registry.sessions)
	req.Empty(registry.chatMembers)
	req.Nil(registry.GetSinksForChat(chatID))
}
