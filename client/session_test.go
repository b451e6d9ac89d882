package client

import (
	"context"
	"log/slog"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type subscribeCall struct {
	chatID  chat.ChatID
	ctx     context.Context
	deliver func(event.Event)
}

type fakeSubscriber struct {
	mu    sync.Mutex
	calls []subscribeCall
	trace *[]string
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, chatID chat.ChatID, deliver func(event.Event)) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, subscribeCall{chatID: chatID, ctx: ctx, deliver: deliver})
	if f.trace != nil {
		*f.trace = append(*f.trace, "subscribe:"+string(chatID))
	}
	return &Subscription{chatID: chatID, paths: map[string]pathState{}}
}

func (f *fakeSubscriber) call(i int) subscribeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func newTestSession(subscriber subscriber, applied *[]event.Event,
	catchUp func(ctx context.Context, lease Lease) error) *SessionManager {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	var mu sync.Mutex
	apply := func(evt event.Event) {
		mu.Lock()
		defer mu.Unlock()
		*applied = append(*applied, evt)
	}
	if catchUp == nil {
		catchUp = func(context.Context, Lease) error { return nil }
	}
	return NewSessionManager(log, subscriber, apply, catchUp)
}

func TestSessionManager_DropsEventsOfPreviousLease(t *testing.T) {
	req := require.New(t)
	subscriber := &fakeSubscriber{}
	var applied []event.Event
	sessions := newTestSession(subscriber, &applied, nil)

	// Given chat A then chat B activated
	req.NoError(sessions.SetActive(context.Background(), chat.OrderChat("chat-a")))
	req.NoError(sessions.SetActive(context.Background(), chat.OrderChat("chat-b")))

	// When the stale subscription of A still delivers
	subscriber.call(0).deliver(event.NewTyping(chat.TypingSignal{ChatID: "chat-a", UserID: "vendor-a", IsTyping: true}))
	subscriber.call(1).deliver(event.NewTyping(chat.TypingSignal{ChatID: "chat-b", UserID: "vendor-b", IsTyping: true}))

	// Then only the event of B is applied
	req.Len(applied, 1)
	req.Equal(chat.ChatID("chat-b"), applied[0].ChatID)
	req.ErrorIs(subscriber.call(0).ctx.Err(), context.Canceled)
	req.NoError(subscriber.call(1).ctx.Err())
}

func TestSessionManager_EventOfAnotherChatOnCurrentLeaseIsDropped(t *testing.T) {
	req := require.New(t)
	subscriber := &fakeSubscriber{}
	var applied []event.Event
	sessions := newTestSession(subscriber, &applied, nil)
	req.NoError(sessions.SetActive(context.Background(), chat.OrderChat("chat-a")))

	_, lease, ok := sessions.Active()
	req.True(ok)

	req.False(sessions.Deliver(lease, event.NewStatusChanged("chat-b", chat.StatusExpired)))
	req.True(sessions.Deliver(lease, event.NewStatusChanged("chat-a", chat.StatusExpired)))
	req.Len(applied, 1)
}

func TestSessionManager_SubscribeBeforeCancelThenCatchUp(t *testing.T) {
	req := require.New(t)
	var trace []string
	subscriber := &fakeSubscriber{trace: &trace}
	var applied []event.Event
	sessions := newTestSession(subscriber, &applied, func(_ context.Context, lease Lease) error {
		previousCancelled := len(subscriber.calls) < 2 || subscriber.calls[0].ctx.Err() != nil
		if previousCancelled {
			trace = append(trace, "catchUp:"+string(lease.ChatID))
		}
		return nil
	})

	req.NoError(sessions.SetActive(context.Background(), chat.OrderChat("chat-a")))
	// The previous subscription is still live while the next one is set up
	req.NoError(sessions.SetActive(context.Background(), chat.Ref{Kind: chat.KindSupport, ID: "support-1"}))

	req.Equal([]string{"subscribe:chat-a", "catchUp:chat-a", "subscribe:support-1", "catchUp:support-1"}, trace)
	ref, lease, ok := sessions.Active()
	req.True(ok)
	req.Equal(chat.KindSupport, ref.Kind)
	req.Equal(uint64(2), lease.Generation)
}

func TestSessionManager_SameChatIsNoop(t *testing.T) {
	req := require.New(t)
	subscriber := &fakeSubscriber{}
	var applied []event.Event
	catchUps := 0
	sessions := newTestSession(subscriber, &applied, func(context.Context, Lease) error {
		catchUps++
		return nil
	})

	req.NoError(sessions.SetActive(context.Background(), chat.OrderChat("chat-a")))
	req.NoError(sessions.SetActive(context.Background(), chat.OrderChat("chat-a")))

	req.Len(subscriber.calls, 1)
	req.Equal(1, catchUps)
	req.Equal(StateSubscribed, sessions.State())
}

func TestSessionManager_TeardownIsIdempotent(t *testing.T) {
	req := require.New(t)
	subscriber := &fakeSubscriber{}
	var applied []event.Event
	sessions := newTestSession(subscriber, &applied, nil)

	// Teardown without any chat does nothing
	sessions.Teardown()
	req.Equal(StateIdle, sessions.State())

	req.NoError(sessions.SetActive(context.Background(), chat.OrderChat("chat-a")))
	_, lease, _ := sessions.Active()

	sessions.Teardown()
	sessions.Teardown()

	req.Equal(StateIdle, sessions.State())
	req.ErrorIs(subscriber.call(0).ctx.Err(), context.Canceled)
	req.False(sessions.Deliver(lease, event.NewStatusChanged("chat-a", chat.StatusExpired)))
	req.Empty(applied)
	req.Nil(sessions.Connected())
}

func TestSessionManager_DeactivationHook(t *testing.T) {
	req := require.New(t)
	var applied []event.Event
	session := newTestSession(&fakeSubscriber{}, &applied, nil)
	var deactivated []chat.ChatID
	session.OnDeactivate(func(ref chat.Ref) {
		deactivated = append(deactivated, ref.ID)
	})
	ctx := context.Background()

	// When switching from A to B, then tearing down twice
	req.NoError(session.SetActive(ctx, chat.OrderChat("A")))
	req.NoError(session.SetActive(ctx, chat.OrderChat("B")))
	session.Teardown()
	session.Teardown()

	// Then each chat is deactivated exactly once
	req.Equal([]chat.ChatID{"A", "B"}, deactivated)
}
