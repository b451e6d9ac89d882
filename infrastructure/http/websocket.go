package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"order-chat/auth"
	"order-chat/contract"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	domainerrors "order-chat/errors"
	"order-chat/services"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// PushHub is the side of the orchestrator a websocket needs.
type PushHub interface {
	RegisterSubscriber(subscriberID string, chatID chat.ChatID, sink contract.EventSink)
	UnregisterSubscriber(subscriberID string, chatID chat.ChatID)
}

func NewPushHandler(log *slog.Logger, service services.IChatService, hub PushHub, allowedOrigins []string, bufferSize int) *PushHandler {
	return &PushHandler{
		log:        log,
		service:    service,
		hub:        hub,
		upgrader:   newUpgrader(allowedOrigins),
		bufferSize: bufferSize,
	}
}

// PushHandler serves GET /ws?chat_id=...: every event of the chat is written
// as a JSON frame; the client may write typing frames back.
type PushHandler struct {
	log        *slog.Logger
	service    services.IChatService
	hub        PushHub
	upgrader   websocket.Upgrader
	bufferSize int
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non browser clients send no Origin.
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}
}

func (h *PushHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chatID := chat.ChatID(r.URL.Query().Get("chat_id"))
	userID, _ := auth.UserIDFromContext(r.Context())
	if chatID == "" {
		writeError(w, h.log, domainerrors.ErrInvalidRequest)
		return
	}
	if _, err := h.service.GetChat(r.Context(), chatID); err != nil {
		writeError(w, h.log, err)
		return
	}

	// Registered before the handshake completes: a client whose dial
	// succeeded gets every event published afterwards.
	sink := newWsSink(h.bufferSize)
	subscriberID := uuid.NewString()
	h.hub.RegisterSubscriber(subscriberID, chatID, sink)
	defer h.hub.UnregisterSubscriber(subscriberID, chatID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		close(sink.done)
		h.log.Warn("WebSocket upgrade error", "error", err)
		return
	}
	defer conn.Close()
	h.log.Debug("Push subscriber joined", "chat_id", chatID, "user_id", userID, "subscriber_id", subscriberID)

	go h.writePump(conn, sink)
	h.readPump(r.Context(), conn, chatID, userID)
	close(sink.done)
	h.log.Debug("Push subscriber left", "chat_id", chatID, "subscriber_id", subscriberID)
}

// readPump blocks until the connection drops. Only typing frames are accepted.
func (h *PushHandler) readPump(ctx context.Context, conn *websocket.Conn, chatID chat.ChatID, userID string) {
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame event.Event
		if err = json.Unmarshal(data, &frame); err != nil {
			h.log.Debug("Ignoring malformed frame", "chat_id", chatID, "error", err)
			continue
		}
		typing, ok := frame.Payload.(event.TypingPayload)
		if !ok {
			continue
		}
		// The connection identity wins over whatever the frame claims.
		signal := chat.TypingSignal{ChatID: chatID, UserID: userID, IsTyping: typing.IsTyping}
		if err = h.service.SetTyping(ctx, signal); err != nil {
			h.log.Debug("Typing signal rejected", "chat_id", chatID, "error", err)
		}
	}
}

func (h *PushHandler) writePump(conn *websocket.Conn, sink *wsSink) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-sink.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case evt := <-sink.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				h.log.Debug("Push write failed", "chat_id", evt.ChatID, "error", err)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// wsSink buffers events for one connection. Consume blocks until the event
// is queued, the connection is gone or the fanout deadline expires.
type wsSink struct {
	out  chan event.Event
	done chan struct{}
}

func newWsSink(bufferSize int) *wsSink {
	return &wsSink{out: make(chan event.Event, bufferSize), done: make(chan struct{})}
}

func (s *wsSink) Consume(ctx context.Context, e event.Event) error {
	select {
	case s.out <- e:
		return nil
	case <-s.done:
		return websocket.ErrCloseSent
	case <-ctx.Done():
		return ctx.Err()
	}
}
