// Package event defines what travels on the push channel and the change feed.
// The wire shape is {type, chat_id, payload}.
package event

import (
	"encoding/json"
	"fmt"
	"order-chat/domain/chat"
	"time"
)

type Type string

const (
	MessageType       Type = "message"
	TypingType        Type = "typing"
	StatusChangedType Type = "statusChanged"
	ReadType          Type = "read"
	TranslationType   Type = "translation"
)

// Event is the envelope shared by both transport paths.
// Payload holds one of the *Payload types below, matching Type.
type Event struct {
	Type    Type        `json:"type"`
	ChatID  chat.ChatID `json:"chat_id"`
	Payload any         `json:"payload"`
}

func (e Event) Chat() chat.ChatID {
	return e.ChatID
}

type MessagePayload struct {
	ID             string    `json:"id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	TranslatedText string    `json:"translated_text,omitempty"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

type TypingPayload struct {
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

type StatusPayload struct {
	Status chat.Status `json:"status"`
}

type ReadPayload struct {
	MessageID string `json:"message_id"`
	ReaderID  string `json:"reader_id"`
}

type TranslationPayload struct {
	Enabled bool `json:"enabled"`
}

func NewMessage(m chat.Message) Event {
	return Event{Type: MessageType, ChatID: m.ChatID, Payload: FromMessage(m)}
}

func NewTyping(s chat.TypingSignal) Event {
	return Event{Type: TypingType, ChatID: s.ChatID, Payload: TypingPayload{UserID: s.UserID, IsTyping: s.IsTyping}}
}

func NewStatusChanged(chatID chat.ChatID, status chat.Status) Event {
	return Event{Type: StatusChangedType, ChatID: chatID, Payload: StatusPayload{Status: status}}
}

func NewRead(chatID chat.ChatID, messageID, readerID string) Event {
	return Event{Type: ReadType, ChatID: chatID, Payload: ReadPayload{MessageID: messageID, ReaderID: readerID}}
}

func NewTranslation(chatID chat.ChatID, enabled bool) Event {
	return Event{Type: TranslationType, ChatID: chatID, Payload: TranslationPayload{Enabled: enabled}}
}

func FromMessage(m chat.Message) MessagePayload {
	return MessagePayload{
		ID:             m.ID,
		SenderID:       m.SenderID,
		Text:           m.Text,
		TranslatedText: m.TranslatedText,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

func (p MessagePayload) ToMessage(chatID chat.ChatID) chat.Message {
	return chat.Message{
		ID:             p.ID,
		ChatID:         chatID,
		SenderID:       p.SenderID,
		Text:           p.Text,
		TranslatedText: p.TranslatedText,
		IsRead:         p.IsRead,
		CreatedAt:      p.CreatedAt.UTC(),
	}
}

// Message extracts the chat message carried by a MessageType event.
func (e Event) Message() (chat.Message, bool) {
	p, ok := e.Payload.(MessagePayload)
	if !ok {
		return chat.Message{}, false
	}
	return p.ToMessage(e.ChatID), true
}

// UnmarshalJSON decodes the payload into the concrete type named by Type.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    Type            `json:"type"`
		ChatID  chat.ChatID     `json:"chat_id"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Type = raw.Type
	e.ChatID = raw.ChatID

	var err error
	switch raw.Type {
	case MessageType:
		e.Payload, err = decode[MessagePayload](raw.Payload)
	case TypingType:
		e.Payload, err = decode[TypingPayload](raw.Payload)
	case StatusChangedType:
		e.Payload, err = decode[StatusPayload](raw.Payload)
	case ReadType:
		e.Payload, err = decode[ReadPayload](raw.Payload)
	case TranslationType:
		e.Payload, err = decode[TranslationPayload](raw.Payload)
	default:
		return fmt.Errorf("unknown event type %q", raw.Type)
	}
	return err
}

func decode[T any](raw json.RawMessage) (T, error) {
	var payload T
	if len(raw) == 0 {
		return payload, nil
	}
	err := json.Unmarshal(raw, &payload)
	return payload, err
}
