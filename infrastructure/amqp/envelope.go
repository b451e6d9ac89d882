package amqp

import (
	"order-chat/domain/chat"
	"time"
)

const (
	OfferAcceptedKey = "order.offer_accepted"
	chatKeyPrefix    = "chat."
)

type Meta struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

type GenericEnvelope[T any] struct {
	Meta Meta `json:"meta"`
	Data T    `json:"data"`
}

// OfferAccepted is emitted by the order domain once an offer wins an order.
type OfferAccepted struct {
	OrderID        string `json:"order_id"`
	AcceptedChatID string `json:"accepted_chat_id"`
}

func (o OfferAccepted) Fact() chat.OfferAcceptanceFact {
	return chat.OfferAcceptanceFact{
		OrderID:        chat.OrderID(o.OrderID),
		AcceptedChatID: chat.ChatID(o.AcceptedChatID),
	}
}
