package workers

import (
	"context"
	"log/slog"
	"order-chat/contract"
	"order-chat/domain/event"
	"order-chat/observability"
	"sync"
	"time"
)

// EventFanout delivers chat events to the push subscribers of the chat and
// to the permanent sinks. Delivery is best effort: a sink that fails or
// exceeds sinkTimeout is logged and skipped. Each event is fully delivered
// before the next one starts, so a given sink sees events in publish order.
type EventFanout struct {
	log            *slog.Logger
	registry       contract.IRegistry
	permanentSinks []contract.EventSink
	events         <-chan event.Event
	sinkTimeout    time.Duration
	monitoring     *observability.MonitoringManager
}

func NewEventFanout(log *slog.Logger, registry contract.IRegistry, events <-chan event.Event,
	sinkTimeout time.Duration, monitoring *observability.MonitoringManager, permanentSinks ...contract.EventSink) *EventFanout {
	return &EventFanout{
		log:            log,
		registry:       registry,
		permanentSinks: permanentSinks,
		events:         events,
		sinkTimeout:    sinkTimeout,
		monitoring:     monitoring,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt := <-w.events:
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout hands the event to every sink concurrently and waits for all of
// them. Typing events only reach push subscribers.
func (w *EventFanout) Fanout(ctx context.Context, evt event.Event) {
	sinks := w.registry.GetSinksForChat(evt.ChatID)
	if evt.Type != event.TypingType {
		sinks = append(sinks, w.permanentSinks...)
	}

	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func(s contract.EventSink) {
			defer wg.Done()
			sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
			defer cancel()
			if err := s.Consume(sinkCtx, evt); err != nil {
				w.log.Warn("Sink failed to consume event", "chat_id", evt.ChatID, "type", evt.Type, "error", err)
				if w.monitoring != nil {
					w.monitoring.IncrSinkFailures()
				}
			}
		}(sink)
	}
	wg.Wait()
}
