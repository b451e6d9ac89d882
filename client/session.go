package client

import (
	"context"
	"log/slog"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	"sync"
)

type State string

const (
	StateIdle       State = "IDLE"
	StateSubscribed State = "SUBSCRIBED"
)

// Lease tags a subscription. Only events carrying the current lease are applied.
type Lease struct {
	ChatID     chat.ChatID
	Generation uint64
}

type subscriber interface {
	Subscribe(ctx context.Context, chatID chat.ChatID, deliver func(event.Event)) *Subscription
}

type active struct {
	ref    chat.Ref
	lease  Lease
	cancel context.CancelFunc
	sub    *Subscription
}

// SessionManager holds the single active chat of the client, whatever its kind.
type SessionManager struct {
	mu         sync.RWMutex
	log        *slog.Logger
	subscriber subscriber
	apply      func(event.Event)
	catchUp    func(ctx context.Context, lease Lease) error
	deactivate func(ref chat.Ref)
	generation uint64
	current    *active
}

// NewSessionManager wires apply, called with every event of the current
// lease, and catchUp, called once a new chat is subscribed.
func NewSessionManager(log *slog.Logger, subscriber subscriber, apply func(event.Event),
	catchUp func(ctx context.Context, lease Lease) error) *SessionManager {
	return &SessionManager{log: log, subscriber: subscriber, apply: apply, catchUp: catchUp}
}

// OnDeactivate registers fn, called with a chat once its subscription is
// cancelled, by a switch or a teardown. Set it before the first SetActive.
func (m *SessionManager) OnDeactivate(fn func(ref chat.Ref)) {
	m.deactivate = fn
}

func (m *SessionManager) deactivated(ref chat.Ref) {
	if m.deactivate != nil {
		m.deactivate(ref)
	}
}

// SetActive makes ref the active chat: the new chat is subscribed first, then
// the previous subscription is cancelled, then the new chat catches up.
// Activating the chat already active does nothing.
func (m *SessionManager) SetActive(ctx context.Context, ref chat.Ref) error {
	m.mu.Lock()
	if m.current != nil && m.current.ref == ref {
		m.mu.Unlock()
		return nil
	}
	m.generation++
	lease := Lease{ChatID: ref.ID, Generation: m.generation}
	subCtx, cancel := context.WithCancel(context.Background())
	next := &active{ref: ref, lease: lease, cancel: cancel}
	next.sub = m.subscriber.Subscribe(subCtx, ref.ID, func(evt event.Event) {
		m.Deliver(lease, evt)
	})
	previous := m.current
	m.current = next
	m.mu.Unlock()

	if previous != nil {
		previous.cancel()
		m.deactivated(previous.ref)
		m.log.Debug("Chat deactivated", "chat_id", previous.ref.ID, "kind", previous.ref.Kind)
	}
	m.log.Debug("Chat activated", "chat_id", ref.ID, "kind", ref.Kind, "generation", lease.Generation)
	return m.catchUp(ctx, lease)
}

// Deliver applies evt when lease is still current and drops it otherwise.
func (m *SessionManager) Deliver(lease Lease, evt event.Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil || m.current.lease != lease || evt.ChatID != lease.ChatID {
		return false
	}
	m.apply(evt)
	return true
}

// Teardown cancels the active subscription and drops its in-memory state.
// Calling it again is a no-op.
func (m *SessionManager) Teardown() {
	m.mu.Lock()
	previous := m.current
	m.current = nil
	m.mu.Unlock()
	if previous == nil {
		return
	}
	previous.cancel()
	previous.sub.Wait()
	m.deactivated(previous.ref)
	m.log.Debug("Session torn down", "chat_id", previous.ref.ID)
}

func (m *SessionManager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return StateIdle
	}
	return StateSubscribed
}

// Active returns the active chat and its lease.
func (m *SessionManager) Active() (chat.Ref, Lease, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return chat.Ref{}, Lease{}, false
	}
	return m.current.ref, m.current.lease, true
}

// Connected lists the live transport paths of the active chat.
func (m *SessionManager) Connected() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	return m.current.sub.Connected()
}
