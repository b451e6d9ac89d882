// Package dto holds the JSON shapes of the REST surface, shared by the
// server handlers and the client engine.
package dto

import (
	"order-chat/domain/chat"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

// Validate runs the struct tags of a request body.
func Validate(v any) error {
	return validate.Struct(v)
}

type ResolveChatRequest struct {
	OrderID        string `json:"order_id" validate:"required,max=128"`
	CounterpartyID string `json:"counterparty_id" validate:"required,max=128"`
}

// SendMessageRequest may carry a client generated id so a retry is stored once.
// Blank text is a domain error, not a validation one.
type SendMessageRequest struct {
	ID   string `json:"id,omitempty" validate:"omitempty,uuid"`
	Text string `json:"text" validate:"max=4000"`
}

type TypingRequest struct {
	IsTyping bool `json:"is_typing"`
}

type TranslationRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type ChatResponse struct {
	ID                 string    `json:"id"`
	OrderID            string    `json:"order_id"`
	CounterpartyID     string    `json:"counterparty_id"`
	CreatedAt          time.Time `json:"created_at"`
	TranslationEnabled bool      `json:"translation_enabled"`
	Status             string    `json:"status,omitempty"`
}

type MessageResponse struct {
	ID             string    `json:"id"`
	ChatID         string    `json:"chat_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	TranslatedText string    `json:"translated_text,omitempty"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func FromSession(s chat.Session, status chat.Status) ChatResponse {
	return ChatResponse{
		ID:                 string(s.ID),
		OrderID:            string(s.OrderID),
		CounterpartyID:     string(s.CounterpartyID),
		CreatedAt:          s.CreatedAt,
		TranslationEnabled: s.TranslationEnabled,
		Status:             string(status),
	}
}

func (r ChatResponse) ToSession() (chat.Session, chat.Status) {
	return chat.Session{
		ID:                 chat.ChatID(r.ID),
		OrderID:            chat.OrderID(r.OrderID),
		CounterpartyID:     chat.CounterpartyID(r.CounterpartyID),
		CreatedAt:          r.CreatedAt.UTC(),
		TranslationEnabled: r.TranslationEnabled,
	}, chat.Status(r.Status)
}

func FromMessage(m chat.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ChatID:         string(m.ChatID),
		SenderID:       m.SenderID,
		Text:           m.Text,
		TranslatedText: m.TranslatedText,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
	}
}

func FromMessages(messages []chat.Message) []MessageResponse {
	return lo.Map(messages, func(m chat.Message, _ int) MessageResponse {
		return FromMessage(m)
	})
}

func (r MessageResponse) ToMessage() chat.Message {
	return chat.Message{
		ID:             r.ID,
		ChatID:         chat.ChatID(r.ChatID),
		SenderID:       r.SenderID,
		Text:           r.Text,
		TranslatedText: r.TranslatedText,
		IsRead:         r.IsRead,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

func ToMessages(responses []MessageResponse) []chat.Message {
	return lo.Map(responses, func(r MessageResponse, _ int) chat.Message {
		return r.ToMessage()
	})
}
