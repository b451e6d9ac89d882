// Package runtime wires the server side of the chat: the directory of chats
// and the broadcast pipeline toward push subscribers and permanent sinks.
// It holds no lifecycle rules.
package runtime

import (
	"context"
	"log/slog"
	"order-chat/contract"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	"order-chat/observability"
	"order-chat/runtime/workers"
	"sync"
	"time"
)

type Orchestrator struct {
	mu             sync.Mutex
	log            *slog.Logger
	supervisor     contract.ISupervisor
	registry       contract.IRegistry
	monitoring     *observability.MonitoringManager
	permanentSinks []contract.EventSink
	extraWorkers   []contract.Worker
	events         chan event.Event
	sinkTimeout    time.Duration
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, registry contract.IRegistry,
	monitoring *observability.MonitoringManager, bufferSize int, sinkTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:         log,
		supervisor:  supervisor,
		registry:    registry,
		monitoring:  monitoring,
		events:      make(chan event.Event, bufferSize),
		sinkTimeout: sinkTimeout,
	}
}

// AddSinks registers sinks receiving every non-typing event of every chat.
// Must be called before Start.
func (o *Orchestrator) AddSinks(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// AddWorkers runs extra workers under the same supervisor.
func (o *Orchestrator) AddWorkers(w ...contract.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.extraWorkers = append(o.extraWorkers, w...)
}

// Publish never blocks: when the buffer is full the event is dropped.
// Clients recover missed messages through catch-up.
func (o *Orchestrator) Publish(evt event.Event) {
	select {
	case o.events <- evt:
		o.monitoring.IncrEventsPublished()
	default:
		o.monitoring.IncrEventsDropped()
		o.log.Warn("Event channel full, dropping event", "chat_id", evt.ChatID, "type", evt.Type)
	}
}

// BufferUsage reports the fill level of the broadcast buffer.
func (o *Orchestrator) BufferUsage() (length, capacity int) {
	return len(o.events), cap(o.events)
}

func (o *Orchestrator) RegisterSubscriber(subscriberID string, chatID chat.ChatID, sink contract.EventSink) {
	o.registry.Subscribe(subscriberID, chatID, sink)
	o.monitoring.AddPushConnections(1)
}

func (o *Orchestrator) UnregisterSubscriber(subscriberID string, chatID chat.ChatID) {
	o.registry.Unsubscribe(subscriberID, chatID)
	o.monitoring.AddPushConnections(-1)
}

// Start registers the fanout and extra workers and blocks until ctx is done
// or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	fanout := workers.NewEventFanout(o.log, o.registry, o.events, o.sinkTimeout, o.monitoring, o.permanentSinks...)
	o.supervisor.Add(fanout)
	o.supervisor.Add(o.extraWorkers...)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
