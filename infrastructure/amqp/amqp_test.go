package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	domainerrors "order-chat/errors"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	keys      []string
	published []amqp091.Publishing
	err       error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   int
	nacked  int
	requeue bool
}

func (f *fakeAcknowledger) Ack(uint64, bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked++
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(uint64, bool) error { return nil }

func (f *fakeAcknowledger) counts() (int, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acked, f.nacked, f.requeue
}

type fakeSource struct {
	deliveries chan amqp091.Delivery
}

func (f fakeSource) Consume(context.Context) (<-chan amqp091.Delivery, error) {
	return f.deliveries, nil
}

type fakeOrders struct {
	facts    []chat.OfferAcceptanceFact
	notified []chat.OrderID
	err      error
}

func (f *fakeOrders) RecordAcceptance(_ context.Context, fact chat.OfferAcceptanceFact) (chat.OfferAcceptanceFact, error) {
	f.facts = append(f.facts, fact)
	return fact, f.err
}

func (f *fakeOrders) NotifyOfferAccepted(_ context.Context, orderID chat.OrderID) error {
	f.notified = append(f.notified, orderID)
	return nil
}

// fakeChats knows chat X of order 50 and chat Z of order 60.
type fakeChats struct{}

func (fakeChats) Get(_ context.Context, chatID chat.ChatID) (chat.Session, error) {
	switch chatID {
	case "X":
		return chat.Session{ID: "X", OrderID: "50"}, nil
	case "Z":
		return chat.Session{ID: "Z", OrderID: "60"}, nil
	}
	return chat.Session{}, fmt.Errorf("%w: %s", domainerrors.ErrChatNotFound, chatID)
}

func offerBody(t *testing.T, orderID, chatID string) []byte {
	body, err := json.Marshal(Envelope{
		Meta: Meta{ID: "evt-1", Type: OfferAcceptedKey, OccurredAt: time.Now().UTC()},
		Data: OfferAccepted{OrderID: orderID, AcceptedChatID: chatID},
	})
	require.NoError(t, err)
	return body
}

func TestEventPublisher_Consume(t *testing.T) {
	req := require.New(t)
	ch := &fakeChannel{}
	publisher := NewEventPublisher(logs.GetLoggerFromLevel(slog.LevelDebug), ch, "order-chat.events")

	// When a status change goes through the sink
	err := publisher.Consume(context.Background(), event.NewStatusChanged("chat-y", chat.StatusClosedByOtherOffer))

	// Then it is published as a persistent JSON envelope keyed by event type
	req.NoError(err)
	req.Equal([]string{"chat.statusChanged"}, ch.keys)
	msg := ch.published[0]
	req.Equal(amqp091.Persistent, msg.DeliveryMode)
	req.Equal("chat-y", msg.CorrelationId)

	var envelope GenericEnvelope[event.Event]
	req.NoError(json.Unmarshal(msg.Body, &envelope))
	req.Equal(event.StatusChangedType, envelope.Data.Type)
	req.Equal(event.StatusPayload{Status: chat.StatusClosedByOtherOffer}, envelope.Data.Payload)
	req.Equal(msg.MessageId, envelope.Meta.ID)
}

func TestEventPublisher_ChannelError(t *testing.T) {
	ch := &fakeChannel{err: fmt.Errorf("channel closed")}
	publisher := NewEventPublisher(logs.GetLoggerFromLevel(slog.LevelDebug), ch, "order-chat.events")

	err := publisher.Consume(context.Background(), event.NewTranslation("chat-x", true))

	require.Error(t, err)
}

func TestOfferConsumer_Handle(t *testing.T) {
	req := require.New(t)
	orders := &fakeOrders{}
	consumer := NewOfferConsumer(logs.GetLoggerFromLevel(slog.LevelDebug), nil, fakeChats{}, orders, orders)

	req.NoError(consumer.Handle(context.Background(), offerBody(t, "50", "X")))

	req.Equal([]chat.OfferAcceptanceFact{{OrderID: "50", AcceptedChatID: "X"}}, orders.facts)
	req.Equal([]chat.OrderID{"50"}, orders.notified)
}

func TestOfferConsumer_Handle_ChatOfAnotherOrder(t *testing.T) {
	req := require.New(t)
	orders := &fakeOrders{}
	consumer := NewOfferConsumer(logs.GetLoggerFromLevel(slog.LevelDebug), nil, fakeChats{}, orders, orders)

	// When the accepted chat belongs to another order, or does not exist
	err := consumer.Handle(context.Background(), offerBody(t, "50", "Z"))
	req.ErrorIs(err, domainerrors.ErrInvalidRequest)
	err = consumer.Handle(context.Background(), offerBody(t, "50", "ghost"))
	req.ErrorIs(err, domainerrors.ErrInvalidRequest)

	// Then nothing is recorded and no chat of order 50 gets closed
	req.Empty(orders.facts)
	req.Empty(orders.notified)
}

func TestOfferConsumer_Run_AcksAndRejects(t *testing.T) {
	req := require.New(t)
	orders := &fakeOrders{}
	source := fakeSource{deliveries: make(chan amqp091.Delivery, 2)}
	consumer := NewOfferConsumer(logs.GetLoggerFromLevel(slog.LevelDebug), source, fakeChats{}, orders, orders)

	good := &fakeAcknowledger{}
	bad := &fakeAcknowledger{}
	source.deliveries <- amqp091.Delivery{Acknowledger: good, DeliveryTag: 1, Body: offerBody(t, "50", "X")}
	source.deliveries <- amqp091.Delivery{Acknowledger: bad, DeliveryTag: 2, Body: []byte("{not json")}
	close(source.deliveries)

	// When the stream is drained then lost
	err := consumer.Run(context.Background())

	// Then the valid event is acked, the malformed one dropped for good
	// and the worker reports the lost stream
	req.Error(err)
	acked, nacked, _ := good.counts()
	req.Equal(1, acked)
	req.Equal(0, nacked)
	acked, nacked, requeue := bad.counts()
	req.Equal(0, acked)
	req.Equal(1, nacked)
	req.False(requeue)
}

func TestOfferConsumer_Run_RequeuesOnFailure(t *testing.T) {
	req := require.New(t)
	orders := &fakeOrders{err: fmt.Errorf("database is locked")}
	source := fakeSource{deliveries: make(chan amqp091.Delivery, 1)}
	consumer := NewOfferConsumer(logs.GetLoggerFromLevel(slog.LevelDebug), source, fakeChats{}, orders, orders)

	ack := &fakeAcknowledger{}
	source.deliveries <- amqp091.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: offerBody(t, "50", "X")}
	close(source.deliveries)

	_ = consumer.Run(context.Background())

	_, nacked, requeue := ack.counts()
	req.Equal(1, nacked)
	req.True(requeue)
	req.Empty(orders.notified)
}

func TestOfferConsumer_Run_StopsOnCancel(t *testing.T) {
	source := fakeSource{deliveries: make(chan amqp091.Delivery)}
	consumer := NewOfferConsumer(logs.GetLoggerFromLevel(slog.LevelDebug), source, fakeChats{}, &fakeOrders{}, &fakeOrders{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, consumer.Run(ctx))
}
