package amqp

import (
	"context"
	"encoding/json"
	"log/slog"
	"order-chat/domain/event"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp091.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// EventPublisher is a permanent sink republishing chat events on the
// exchange under "chat.<type>" routing keys.
type EventPublisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
	log      *slog.Logger
}

func NewEventPublisher(log *slog.Logger, ch Channel, exchange string) *EventPublisher {
	return &EventPublisher{ch: ch, exchange: exchange, log: log}
}

func (p *EventPublisher) Consume(ctx context.Context, evt event.Event) error {
	envelope := Envelope{
		Meta: Meta{ID: uuid.NewString(), Type: string(evt.Type), OccurredAt: time.Now().UTC()},
		Data: evt,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	key := chatKeyPrefix + string(evt.Type)

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     envelope.Meta.ID,
		CorrelationId: string(evt.ChatID),
		Timestamp:     envelope.Meta.OccurredAt,
		Body:          body,
	})
	if err != nil {
		p.log.Error("Failed to publish chat event", "key", key, "chat_id", evt.ChatID, "error", err)
		return err
	}
	p.log.Debug("Chat event published", "key", key, "chat_id", evt.ChatID)
	return nil
}
