// Package projection builds the local view of chats from observed events.
// Handles ordering and deduplication. Does not emit events.
package projection

import (
	"order-chat/domain/chat"
	"sort"
	"sync"
)

// MessageLog is the client copy of every chat it has seen. Append is the
// single dedup point for both transport paths and local sends.
type MessageLog struct {
	mu    sync.RWMutex
	chats map[chat.ChatID]*chatLog
	owner map[string]chat.ChatID // messageId -> chat
}

type chatLog struct {
	mu       sync.Mutex
	byID     map[string]int
	messages []chat.Message // kept in (CreatedAt, ID) order
}

func NewMessageLog() *MessageLog {
	return &MessageLog{
		chats: make(map[chat.ChatID]*chatLog),
		owner: make(map[string]chat.ChatID),
	}
}

func (l *MessageLog) chat(chatID chat.ChatID) *chatLog {
	l.mu.RLock()
	c, ok := l.chats[chatID]
	l.mu.RUnlock()
	if ok {
		return c
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok = l.chats[chatID]; !ok {
		c = &chatLog{byID: make(map[string]int)}
		l.chats[chatID] = c
	}
	return c
}

// Append inserts the message unless its id is already known and reports
// whether it did.
func (l *MessageLog) Append(m chat.Message) bool {
	c := l.chat(m.ChatID)
	c.mu.Lock()
	if _, ok := c.byID[m.ID]; ok {
		c.mu.Unlock()
		return false
	}
	i := sort.Search(len(c.messages), func(i int) bool {
		return chat.Less(m, c.messages[i])
	})
	c.messages = append(c.messages, chat.Message{})
	copy(c.messages[i+1:], c.messages[i:])
	c.messages[i] = m
	for j := i; j < len(c.messages); j++ {
		c.byID[c.messages[j].ID] = j
	}
	c.mu.Unlock()

	l.mu.Lock()
	l.owner[m.ID] = m.ChatID
	l.mu.Unlock()
	return true
}

// List returns a copy of the chat in (CreatedAt, ID) order.
func (l *MessageLog) List(chatID chat.ChatID) []chat.Message {
	c := l.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.messages...)
}

// MarkRead flips IsRead when the reader is not the sender. It reports
// whether the flag changed.
func (l *MessageLog) MarkRead(messageID, readerID string) bool {
	return l.update(messageID, func(m *chat.Message) bool {
		if m.IsRead || m.SenderID == readerID {
			return false
		}
		m.IsRead = true
		return true
	})
}

// ApplyRead records a read observed from the server.
func (l *MessageLog) ApplyRead(messageID string) bool {
	return l.update(messageID, func(m *chat.Message) bool {
		if m.IsRead {
			return false
		}
		m.IsRead = true
		return true
	})
}

func (l *MessageLog) update(messageID string, fn func(m *chat.Message) bool) bool {
	l.mu.RLock()
	chatID, ok := l.owner[messageID]
	l.mu.RUnlock()
	if !ok {
		return false
	}
	c := l.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.byID[messageID]
	if !ok {
		return false
	}
	return fn(&c.messages[i])
}

// LastSeen is the id of the latest message of the chat, the catch-up cursor.
func (l *MessageLog) LastSeen(chatID chat.ChatID) (string, bool) {
	c := l.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return "", false
	}
	return c.messages[len(c.messages)-1].ID, true
}

func (l *MessageLog) count(chatID chat.ChatID) int {
	c := l.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
