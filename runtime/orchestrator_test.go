package runtime

import (
	"context"
	"log/slog"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	"order-chat/observability"
	"order-chat/runtime/workers"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (s *recordingSink) Consume(_ context.Context, e event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestOrchestrator_PublishReachesSubscribersAndPermanentSinks(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitoring := observability.NewMonitoringManager(log)
	orchestrator := NewOrchestrator(log, workers.NewSupervisor(log), NewRegistry(), monitoring, 10, time.Second)

	permanent := &recordingSink{}
	subscriber := &recordingSink{}
	other := &recordingSink{}
	orchestrator.AddSinks(permanent)
	orchestrator.RegisterSubscriber("ws-1", "chat-x", subscriber)
	orchestrator.RegisterSubscriber("ws-2", "chat-y", other)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = orchestrator.Start(ctx)
		close(done)
	}()

	// When a message and a typing signal are published for chat-x
	orchestrator.Publish(event.NewMessage(chat.Message{ID: "m-1", ChatID: "chat-x", SenderID: "vendor-a", Text: "ok"}))
	orchestrator.Publish(event.NewTyping(chat.TypingSignal{ChatID: "chat-x", UserID: "vendor-a", IsTyping: true}))

	// Then the subscriber gets both, the permanent sink only the message
	req.Eventually(func() bool { return subscriber.Len() == 2 }, time.Second, 10*time.Millisecond)
	req.Equal(1, permanent.Len())
	req.Equal(0, other.Len())
	req.Equal(uint64(2), monitoring.GetLatest().EventsPublished)

	orchestrator.Stop()
	cancel()
	<-done
}

func TestOrchestrator_PublishDropsWhenFull(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitoring := observability.NewMonitoringManager(log)
	orchestrator := NewOrchestrator(log, workers.NewSupervisor(log), NewRegistry(), monitoring, 1, time.Second)

	// Given nobody drains the channel
	orchestrator.Publish(event.NewTranslation("chat-x", true))
	orchestrator.Publish(event.NewTranslation("chat-x", false))

	req.Equal(uint64(1), monitoring.GetLatest().EventsPublished)
	req.Equal(uint64(1), monitoring.GetLatest().EventsDropped)
}
