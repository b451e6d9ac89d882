//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"order-chat/domain/chat"
	"order-chat/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// used in supervision logs.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

// Publisher hands an event to the broadcast pipeline without blocking.
type Publisher interface {
	Publish(evt event.Event)
}

type IRegistry interface {
	GetSinksForChat(chatID chat.ChatID) []EventSink
	Subscribe(subscriberID string, chatID chat.ChatID, sink EventSink)
	Unsubscribe(subscriberID string, chatID chat.ChatID)
}

// OrderService is the order/offer domain as seen from the chat.
type OrderService interface {
	GetOrderAcceptanceFact(ctx context.Context, orderID chat.OrderID) (*chat.OfferAcceptanceFact, error)
	OrderExists(ctx context.Context, orderID chat.OrderID) (bool, error)
	CounterpartyExists(ctx context.Context, counterpartyID chat.CounterpartyID) (bool, error)
}

type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// ChatAPI is the request/response surface the client engine talks to.
type ChatAPI interface {
	ResolveChat(ctx context.Context, orderID chat.OrderID, counterpartyID chat.CounterpartyID) (chat.Session, error)
	GetChat(ctx context.Context, chatID chat.ChatID) (chat.Session, chat.Status, error)
	Send(ctx context.Context, cmd chat.SendCommand) (chat.Message, error)
	List(ctx context.Context, query chat.ListQuery) ([]chat.Message, error)
	MarkRead(ctx context.Context, messageID string) error
	SetTranslation(ctx context.Context, chatID chat.ChatID, enabled bool) (chat.Session, error)
}

// Transport is one realtime path. The returned channel is closed when the
// subscription ends, either on ctx cancellation or on connection loss.
type Transport interface {
	Name() string
	Subscribe(ctx context.Context, chatID chat.ChatID) (<-chan event.Event, error)
}

// Signaler carries ephemeral typing frames upstream.
type Signaler interface {
	SendTyping(ctx context.Context, signal chat.TypingSignal) error
}
