// Package chat contains the order-scoped chat concepts shared by the server
// and the client engine: sessions, messages, offer facts and typing signals.
package chat

import (
	"fmt"
	"time"
)

type ChatID string

type OrderID string

// CounterpartyID identifies the vendor or customer on the other side of an order chat.
type CounterpartyID string

// Kind separates chat categories sharing the single active-chat slot of a client.
type Kind string

const (
	KindOrder   Kind = "order"
	KindSupport Kind = "support"
)

// Ref points at a chat of a given kind.
type Ref struct {
	Kind Kind
	ID   ChatID
}

func OrderChat(id ChatID) Ref {
	return Ref{Kind: KindOrder, ID: id}
}

// Session binds an order and a counterparty to their message history.
// There is exactly one Session per (OrderID, CounterpartyID) pair.
// Its status is never stored, see Evaluate.
type Session struct {
	ID                 ChatID
	OrderID            OrderID
	CounterpartyID     CounterpartyID
	CreatedAt          time.Time
	TranslationEnabled bool
}

// PairKey is the directory key of a pair. The order id is length prefixed
// so that no two pairs share a key, whatever bytes the ids contain.
func PairKey(orderID OrderID, counterpartyID CounterpartyID) string {
	return fmt.Sprintf("%d:%s|%s", len(orderID), orderID, counterpartyID)
}
