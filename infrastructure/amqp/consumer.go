package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"order-chat/domain/chat"
	domainerrors "order-chat/errors"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const handlerTimeout = 10 * time.Second

// Source hands out a fresh delivery stream. The stream is closed when the
// underlying channel or connection goes away.
type Source interface {
	Consume(ctx context.Context) (<-chan amqp091.Delivery, error)
}

type AcceptanceRecorder interface {
	RecordAcceptance(ctx context.Context, fact chat.OfferAcceptanceFact) (chat.OfferAcceptanceFact, error)
}

type OfferNotifier interface {
	NotifyOfferAccepted(ctx context.Context, orderID chat.OrderID) error
}

type ChatLookup interface {
	Get(ctx context.Context, chatID chat.ChatID) (chat.Session, error)
}

// OfferConsumer stores offer-accepted facts and pushes the resulting chat
// statuses. It runs as a supervised worker: a lost stream is an error, so
// the supervisor opens a new one.
type OfferConsumer struct {
	log      *slog.Logger
	source   Source
	chats    ChatLookup
	recorder AcceptanceRecorder
	notifier OfferNotifier
}

func NewOfferConsumer(log *slog.Logger, source Source, chats ChatLookup, recorder AcceptanceRecorder,
	notifier OfferNotifier) *OfferConsumer {
	return &OfferConsumer{log: log, source: source, chats: chats, recorder: recorder, notifier: notifier}
}

func (c *OfferConsumer) Run(ctx context.Context) error {
	deliveries, err := c.source.Consume(ctx)
	if err != nil {
		return fmt.Errorf("open offer stream: %w", err)
	}
	c.log.Info("Offer consumer started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("offer stream closed")
			}
			c.dispatch(ctx, d)
		}
	}
}

func (c *OfferConsumer) dispatch(ctx context.Context, d amqp091.Delivery) {
	hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	err := c.Handle(hctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, domainerrors.ErrInvalidRequest):
		// Poison message, never requeued.
		c.log.Error("Rejecting malformed offer event", "message_id", d.MessageId, "error", err)
		_ = d.Nack(false, false)
	default:
		c.log.Error("Offer event handling failed", "message_id", d.MessageId, "error", err)
		_ = d.Nack(false, true)
	}
}

// Handle decodes one offer-accepted envelope and applies it.
func (c *OfferConsumer) Handle(ctx context.Context, body []byte) error {
	var envelope GenericEnvelope[OfferAccepted]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: %v", domainerrors.ErrInvalidRequest, err)
	}
	fact := envelope.Data.Fact()
	if err := c.checkChatOfOrder(ctx, fact); err != nil {
		return err
	}
	fact, err := c.recorder.RecordAcceptance(ctx, fact)
	if err != nil {
		return err
	}
	c.log.Info("Offer accepted", "order_id", fact.OrderID, "accepted_chat_id", fact.AcceptedChatID)
	return c.notifier.NotifyOfferAccepted(ctx, fact.OrderID)
}

// checkChatOfOrder rejects a fact whose accepted chat is unknown or
// belongs to another order.
func (c *OfferConsumer) checkChatOfOrder(ctx context.Context, fact chat.OfferAcceptanceFact) error {
	session, err := c.chats.Get(ctx, fact.AcceptedChatID)
	switch {
	case errors.Is(err, domainerrors.ErrChatNotFound):
		return fmt.Errorf("%w: accepted chat %s does not exist", domainerrors.ErrInvalidRequest, fact.AcceptedChatID)
	case err != nil:
		return err
	case session.OrderID != fact.OrderID:
		return fmt.Errorf("%w: chat %s belongs to order %s, not %s",
			domainerrors.ErrInvalidRequest, fact.AcceptedChatID, session.OrderID, fact.OrderID)
	}
	return nil
}

// QueueSource binds a durable queue to the offer-accepted routing key.
type QueueSource struct {
	conn     *amqp091.Connection
	exchange string
	queue    string
}

func NewQueueSource(conn *amqp091.Connection, exchange, queue string) *QueueSource {
	return &QueueSource{conn: conn, exchange: exchange, queue: queue}
}

func (s *QueueSource) Consume(ctx context.Context) (<-chan amqp091.Delivery, error) {
	ch, err := s.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err = ch.Qos(10, 0, false); err != nil {
		_ = ch.Close()
		return nil, err
	}
	q, err := ch.QueueDeclare(s.queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err = ch.QueueBind(q.Name, OfferAcceptedKey, s.exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = ch.Close()
	}()
	return deliveries, nil
}
