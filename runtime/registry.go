package runtime

import (
	"order-chat/contract"
	"order-chat/domain/chat"
	"sync"
)

type Set map[string]struct{}

// Registry maps push subscribers (one per websocket connection) to the chat
// they listen to.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[string]contract.EventSink // subscriber -> sink
	chatMembers map[chat.ChatID]Set           // chat -> subscribers
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[string]contract.EventSink),
		chatMembers: make(map[chat.ChatID]Set),
	}
}

// GetSinksForChat resolves the subscribers of a chat into their sinks.
// Returns nil if nobody listens.
func (r *Registry) GetSinksForChat(chatID chat.ChatID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.chatMembers[chatID]
	if !ok {
		return nil
	}
	var activeSinks []contract.EventSink
	for subscriberID := range members {
		if sink, exists := r.sessions[subscriberID]; exists {
			activeSinks = append(activeSinks, sink)
		}
	}
	return activeSinks
}

func (r *Registry) Subscribe(subscriberID string, chatID chat.ChatID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[subscriberID] = sink

	if _, ok := r.chatMembers[chatID]; !ok {
		r.chatMembers[chatID] = make(Set)
	}
	r.chatMembers[chatID][subscriberID] = struct{}{}
}

// Unsubscribe removes the subscriber and drops the chat entry once empty.
func (r *Registry) Unsubscribe(subscriberID string, chatID chat.ChatID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, subscriberID)

	if members, ok := r.chatMembers[chatID]; ok {
		delete(members, subscriberID)
		if len(members) == 0 {
			delete(r.chatMembers, chatID)
		}
	}
}

// Count returns the number of chats and subscribers currently registered.
func (r *Registry) Count() (chats int, subscribers int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chatMembers), len(r.sessions)
}
