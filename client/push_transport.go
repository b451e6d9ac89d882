package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"order-chat/contract"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const pushWriteWait = 5 * time.Second

// PushTransport is the websocket path. It also carries typing frames
// upstream while a connection to the chat is open.
type PushTransport struct {
	log      *slog.Logger
	wsURL    string
	token    string
	dialer   *websocket.Dialer
	fallback contract.Signaler

	mu    sync.Mutex
	conns map[chat.ChatID]*pushConn
}

type pushConn struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

// NewPushTransport dials apiURL with its scheme switched to ws(s).
// fallback sends typing signals when no connection is open, it may be nil.
func NewPushTransport(log *slog.Logger, apiURL, token string, fallback contract.Signaler) *PushTransport {
	return &PushTransport{
		log:      log,
		wsURL:    WebSocketURL(apiURL),
		token:    token,
		dialer:   websocket.DefaultDialer,
		fallback: fallback,
		conns:    make(map[chat.ChatID]*pushConn),
	}
}

// WebSocketURL maps http(s)://host to ws(s)://host/ws.
func WebSocketURL(apiURL string) string {
	u := strings.TrimRight(apiURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

func (t *PushTransport) Name() string {
	return "push"
}

func (t *PushTransport) Subscribe(ctx context.Context, chatID chat.ChatID) (<-chan event.Event, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+t.token)
	conn, resp, err := t.dialer.DialContext(ctx, t.wsURL+"?chat_id="+url.QueryEscape(string(chatID)), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("push dial: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("push dial: %w", err)
	}
	pc := &pushConn{conn: conn}
	t.mu.Lock()
	t.conns[chatID] = pc
	t.mu.Unlock()

	out := make(chan event.Event)
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	go func() {
		defer close(out)
		defer stop()
		defer t.release(chatID, pc)
		for {
			var evt event.Event
			if err := conn.ReadJSON(&evt); err != nil {
				if ctx.Err() == nil {
					t.log.Debug("Push connection lost", "chat_id", chatID, "error", err)
				}
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (t *PushTransport) release(chatID chat.ChatID, pc *pushConn) {
	_ = pc.conn.Close()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conns[chatID] == pc {
		delete(t.conns, chatID)
	}
}

// SendTyping writes a typing frame on the open connection of the chat.
func (t *PushTransport) SendTyping(ctx context.Context, signal chat.TypingSignal) error {
	t.mu.Lock()
	pc, ok := t.conns[signal.ChatID]
	t.mu.Unlock()
	if !ok {
		if t.fallback == nil {
			return fmt.Errorf("no push connection for chat %s", signal.ChatID)
		}
		return t.fallback.SendTyping(ctx, signal)
	}
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()
	_ = pc.conn.SetWriteDeadline(time.Now().Add(pushWriteWait))
	return pc.conn.WriteJSON(event.NewTyping(signal))
}
