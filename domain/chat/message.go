package chat

import (
	"sort"
	"time"
)

// Message is a single chat entry. Only IsRead ever changes after creation.
type Message struct {
	ID             string
	ChatID         ChatID
	SenderID       string
	Text           string
	TranslatedText string
	IsRead         bool
	CreatedAt      time.Time
}

// Less orders messages by creation time, then id.
func Less(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortMessages sorts in place by (CreatedAt, ID).
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return Less(messages[i], messages[j])
	})
}

// TypingSignal is ephemeral: receivers keep the latest one per (ChatID, UserID).
type TypingSignal struct {
	ChatID   ChatID
	UserID   string
	IsTyping bool
}
