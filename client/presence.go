package client

import (
	"order-chat/domain/chat"
	"sort"
	"sync"
	"time"
)

type presenceKey struct {
	chatID chat.ChatID
	userID string
}

type presenceEntry struct {
	typing bool
	timer  *time.Timer
}

// Presence keeps the latest typing signal per (chat, user). A typing flag
// not refreshed within the TTL expires on its own.
type Presence struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[presenceKey]*presenceEntry
}

func NewPresence(ttl time.Duration) *Presence {
	return &Presence{ttl: ttl, entries: make(map[presenceKey]*presenceEntry)}
}

func (p *Presence) Observe(signal chat.TypingSignal) {
	key := presenceKey{chatID: signal.ChatID, userID: signal.UserID}
	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.entries[key]; ok && old.timer != nil {
		old.timer.Stop()
	}
	if !signal.IsTyping {
		delete(p.entries, key)
		return
	}
	entry := &presenceEntry{typing: true}
	entry.timer = time.AfterFunc(p.ttl, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		// A newer signal replaced the entry, leave it alone.
		if p.entries[key] == entry {
			delete(p.entries, key)
		}
	})
	p.entries[key] = entry
}

// Typing returns the users currently typing in the chat, sorted.
func (p *Presence) Typing(chatID chat.ChatID) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var users []string
	for key, entry := range p.entries {
		if key.chatID == chatID && entry.typing {
			users = append(users, key.userID)
		}
	}
	sort.Strings(users)
	return users
}

// Clear forgets every signal of the chat.
func (p *Presence) Clear(chatID chat.ChatID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, entry := range p.entries {
		if key.chatID == chatID {
			entry.timer.Stop()
			delete(p.entries, key)
		}
	}
}
