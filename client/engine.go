// Package client is the chat engine embedded in the marketplace apps. It
// resolves chats, sends through the REST API and keeps the active chat in
// sync over the push and feed transports.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"order-chat/contract"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	domainerrors "order-chat/errors"
	"order-chat/projection"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EngineConfig struct {
	TypingTTL          time.Duration
	ReconnectMin       time.Duration
	ReconnectMax       time.Duration
	NotificationBuffer int
}

type Engine struct {
	log      *slog.Logger
	userID   string
	api      contract.ChatAPI
	signaler contract.Signaler
	messages *projection.MessageLog
	presence *Presence
	mux      *Multiplexer
	sessions *SessionManager

	mu            sync.Mutex
	translation   map[chat.ChatID]bool
	statuses      map[chat.ChatID]chat.Status
	notifications chan event.Event
}

func NewEngine(log *slog.Logger, userID string, api contract.ChatAPI, signaler contract.Signaler,
	transports []contract.Transport, cfg EngineConfig) *Engine {
	e := &Engine{
		log:           log,
		userID:        userID,
		api:           api,
		signaler:      signaler,
		messages:      projection.NewMessageLog(),
		presence:      NewPresence(cfg.TypingTTL),
		translation:   make(map[chat.ChatID]bool),
		statuses:      make(map[chat.ChatID]chat.Status),
		notifications: make(chan event.Event, cfg.NotificationBuffer),
	}
	e.mux = NewMultiplexer(log, api, e.messages.LastSeen, transports, cfg.ReconnectMin, cfg.ReconnectMax)
	e.sessions = NewSessionManager(log, e.mux, e.apply, e.catchUp)
	e.sessions.OnDeactivate(func(ref chat.Ref) {
		e.presence.Clear(ref.ID)
	})
	return e
}

func (e *Engine) ResolveChat(ctx context.Context, orderID chat.OrderID, counterpartyID chat.CounterpartyID) (chat.Session, error) {
	session, err := e.api.ResolveChat(ctx, orderID, counterpartyID)
	if err != nil {
		return chat.Session{}, err
	}
	e.mu.Lock()
	e.translation[session.ID] = session.TranslationEnabled
	e.mu.Unlock()
	return session, nil
}

// Send rejects blank text before any network call. A transient network
// failure is retried once with the same message id, so the server stores
// the message at most once.
func (e *Engine) Send(ctx context.Context, chatID chat.ChatID, text string) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, domainerrors.ErrEmptyMessage
	}
	id, err := uuid.NewV7()
	if err != nil {
		return chat.Message{}, err
	}
	cmd := chat.SendCommand{ChatID: chatID, MessageID: id.String(), SenderID: e.userID, Text: text}

	message, err := e.api.Send(ctx, cmd)
	if errors.Is(err, ErrNetwork) {
		e.log.Warn("Send failed, retrying once", "chat_id", chatID, "message_id", cmd.MessageID, "error", err)
		message, err = e.api.Send(ctx, cmd)
	}
	if err != nil {
		return chat.Message{}, err
	}
	if e.messages.Append(message) {
		e.notify(event.NewMessage(message))
	}
	return message, nil
}

// List fetches what the server has beyond the local cursor, then returns
// the local log of the chat in (createdAt, id) order.
func (e *Engine) List(ctx context.Context, chatID chat.ChatID) ([]chat.Message, error) {
	since, _ := e.messages.LastSeen(chatID)
	messages, err := e.api.List(ctx, chat.ListQuery{ChatID: chatID, SinceID: since})
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		e.apply(event.NewMessage(m))
	}
	return e.messages.List(chatID), nil
}

func (e *Engine) MarkRead(ctx context.Context, messageID string) error {
	if err := e.api.MarkRead(ctx, messageID); err != nil {
		return err
	}
	e.messages.MarkRead(messageID, e.userID)
	return nil
}

// SetTyping is fire and forget from the caller's point of view.
func (e *Engine) SetTyping(ctx context.Context, chatID chat.ChatID, isTyping bool) error {
	return e.signaler.SendTyping(ctx, chat.TypingSignal{ChatID: chatID, UserID: e.userID, IsTyping: isTyping})
}

// ToggleTranslation flips the flag locally first and reverts it when the
// server refuses. Asking for the current value does nothing.
func (e *Engine) ToggleTranslation(ctx context.Context, chatID chat.ChatID, enabled bool) error {
	e.mu.Lock()
	previous := e.translation[chatID]
	if previous == enabled {
		e.mu.Unlock()
		return nil
	}
	e.translation[chatID] = enabled
	e.mu.Unlock()

	if _, err := e.api.SetTranslation(ctx, chatID, enabled); err != nil {
		e.mu.Lock()
		e.translation[chatID] = previous
		e.mu.Unlock()
		return fmt.Errorf("%w: %v", domainerrors.ErrTranslationToggleFailed, err)
	}
	return nil
}

func (e *Engine) TranslationEnabled(chatID chat.ChatID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.translation[chatID]
}

// Status is the last status the engine heard of for the chat.
func (e *Engine) Status(chatID chat.ChatID) (chat.Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	status, ok := e.statuses[chatID]
	return status, ok
}

func (e *Engine) SetActiveChat(ctx context.Context, ref chat.Ref) error {
	return e.sessions.SetActive(ctx, ref)
}

func (e *Engine) Teardown() {
	e.sessions.Teardown()
}

func (e *Engine) State() State {
	return e.sessions.State()
}

// Connected lists the transport paths currently live for the active chat.
func (e *Engine) Connected() []string {
	return e.sessions.Connected()
}

func (e *Engine) Typing(chatID chat.ChatID) []string {
	return e.presence.Typing(chatID)
}

// Messages is the local log of the chat, without any network call.
func (e *Engine) Messages(chatID chat.ChatID) []chat.Message {
	return e.messages.List(chatID)
}

// Notifications carries every event that changed the local state.
func (e *Engine) Notifications() <-chan event.Event {
	return e.notifications
}

func (e *Engine) TransportErrors() <-chan error {
	return e.mux.Errors()
}

// catchUp runs once per activation: chat metadata, then messages beyond the
// local cursor, each applied only while the lease is current.
func (e *Engine) catchUp(ctx context.Context, lease Lease) error {
	session, status, err := e.api.GetChat(ctx, lease.ChatID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.translation[session.ID] = session.TranslationEnabled
	e.statuses[session.ID] = status
	e.mu.Unlock()

	since, _ := e.messages.LastSeen(lease.ChatID)
	messages, err := e.api.List(ctx, chat.ListQuery{ChatID: lease.ChatID, SinceID: since})
	if err != nil {
		return err
	}
	for _, m := range messages {
		e.sessions.Deliver(lease, event.NewMessage(m))
	}
	return nil
}

// apply is the single entry point of inbound events, whatever path they
// took. Messages go through the log, which drops duplicates.
func (e *Engine) apply(evt event.Event) {
	switch payload := evt.Payload.(type) {
	case event.MessagePayload:
		message := payload.ToMessage(evt.ChatID)
		inserted := e.messages.Append(message)
		// The feed re-emits a message when its read flag is rewritten.
		read := !inserted && message.IsRead && e.messages.ApplyRead(message.ID)
		if inserted || read {
			e.notify(evt)
		}
	case event.ReadPayload:
		if e.messages.ApplyRead(payload.MessageID) {
			e.notify(evt)
		}
	case event.TypingPayload:
		if payload.UserID == e.userID {
			return
		}
		e.presence.Observe(chat.TypingSignal{ChatID: evt.ChatID, UserID: payload.UserID, IsTyping: payload.IsTyping})
		e.notify(evt)
	case event.StatusPayload:
		e.mu.Lock()
		e.statuses[evt.ChatID] = payload.Status
		e.mu.Unlock()
		e.notify(evt)
	case event.TranslationPayload:
		e.mu.Lock()
		e.translation[evt.ChatID] = payload.Enabled
		e.mu.Unlock()
		e.notify(evt)
	}
}

func (e *Engine) notify(evt event.Event) {
	select {
	case e.notifications <- evt:
	default:
		e.log.Warn("Notification buffer full, dropping", "chat_id", evt.ChatID, "type", evt.Type)
	}
}
