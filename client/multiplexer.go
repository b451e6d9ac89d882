package client

import (
	"context"
	"errors"
	"log/slog"
	"order-chat/contract"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	domainerrors "order-chat/errors"
	"sync"
	"time"
)

var errStreamClosed = errors.New("stream closed")

// Multiplexer keeps every transport path of a chat subscribed. Each path
// runs in its own goroutine and reconnects with exponential backoff. Every
// successful connect, the first one included, triggers a catch-up over the
// REST API: a transport's Subscribe returns once the server side is live.
type Multiplexer struct {
	log        *slog.Logger
	api        contract.ChatAPI
	cursor     func(chatID chat.ChatID) (string, bool)
	transports []contract.Transport
	minDelay   time.Duration
	maxDelay   time.Duration
	errs       chan error
}

// NewMultiplexer builds a multiplexer over transports. cursor returns the
// last message id known locally, the catch-up starting point.
func NewMultiplexer(log *slog.Logger, api contract.ChatAPI, cursor func(chat.ChatID) (string, bool),
	transports []contract.Transport, minDelay, maxDelay time.Duration) *Multiplexer {
	return &Multiplexer{
		log:        log,
		api:        api,
		cursor:     cursor,
		transports: transports,
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		errs:       make(chan error, 8),
	}
}

// Errors reports ErrTransportDisconnected each time every path of a
// subscription is down at once.
func (m *Multiplexer) Errors() <-chan error {
	return m.errs
}

type pathState int

const (
	pathConnecting pathState = iota
	pathUp
	pathDown
)

type Subscription struct {
	chatID    chat.ChatID
	mu        sync.Mutex
	paths     map[string]pathState
	escalated bool
	wg        sync.WaitGroup
}

// Connected lists the paths currently delivering events.
func (s *Subscription) Connected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name, state := range s.paths {
		if state == pathUp {
			names = append(names, name)
		}
	}
	return names
}

// Wait blocks until every path goroutine returned, after ctx was cancelled.
func (s *Subscription) Wait() {
	s.wg.Wait()
}

// Subscribe starts one goroutine per path. deliver is called for every
// event of every path, from several goroutines.
func (m *Multiplexer) Subscribe(ctx context.Context, chatID chat.ChatID, deliver func(event.Event)) *Subscription {
	sub := &Subscription{chatID: chatID, paths: make(map[string]pathState)}
	for _, t := range m.transports {
		sub.paths[t.Name()] = pathConnecting
	}
	for _, t := range m.transports {
		sub.wg.Add(1)
		go m.run(ctx, sub, t, deliver)
	}
	return sub
}

func (m *Multiplexer) run(ctx context.Context, sub *Subscription, t contract.Transport, deliver func(event.Event)) {
	defer sub.wg.Done()
	name := t.Name()
	attempt := 0
	for ctx.Err() == nil {
		events, err := t.Subscribe(ctx, sub.chatID)
		if err != nil {
			m.markDown(ctx, sub, name, err)
			if !sleep(ctx, m.delay(attempt)) {
				return
			}
			attempt++
			continue
		}

		m.markUp(sub, name)
		m.catchUp(ctx, sub.chatID, deliver)
		attempt = 0

		for evt := range events {
			deliver(evt)
		}
		if ctx.Err() != nil {
			return
		}
		m.markDown(ctx, sub, name, errStreamClosed)
		if !sleep(ctx, m.delay(attempt)) {
			return
		}
		attempt++
	}
}

func (m *Multiplexer) catchUp(ctx context.Context, chatID chat.ChatID, deliver func(event.Event)) {
	since, _ := m.cursor(chatID)
	messages, err := m.api.List(ctx, chat.ListQuery{ChatID: chatID, SinceID: since})
	if err != nil {
		m.log.Warn("Catch-up failed", "chat_id", chatID, "since", since, "error", err)
		return
	}
	for _, message := range messages {
		deliver(event.NewMessage(message))
	}
	m.log.Debug("Catch-up done", "chat_id", chatID, "since", since, "messages", len(messages))
}

func (m *Multiplexer) markUp(sub *Subscription, name string) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.paths[name] = pathUp
	sub.escalated = false
	m.log.Debug("Transport connected", "chat_id", sub.chatID, "transport", name)
}

func (m *Multiplexer) markDown(ctx context.Context, sub *Subscription, name string, cause error) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.paths[name] = pathDown
	m.log.Warn("Transport down", "chat_id", sub.chatID, "transport", name, "error", cause)
	if sub.escalated || ctx.Err() != nil {
		return
	}
	// A path still connecting for the first time may yet come up.
	for _, state := range sub.paths {
		if state != pathDown {
			return
		}
	}
	sub.escalated = true
	select {
	case m.errs <- domainerrors.ErrTransportDisconnected:
	default:
	}
}

func (m *Multiplexer) delay(attempt int) time.Duration {
	d := m.minDelay
	for i := 0; i < attempt && d < m.maxDelay; i++ {
		d *= 2
	}
	return min(d, m.maxDelay)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
