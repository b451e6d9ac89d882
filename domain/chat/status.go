package chat

import (
	"time"
)

type Status string

const (
	StatusActive             Status = "ACTIVE"
	StatusExpired            Status = "EXPIRED"
	StatusClosedByOtherOffer Status = "CLOSED_BY_OTHER_OFFER"
)

// OfferWindow is how long a chat without an accepted offer stays usable.
const OfferWindow = 24 * time.Hour

// OfferAcceptanceFact records which competing chat won an order.
// It is owned by the order domain.
type OfferAcceptanceFact struct {
	OrderID        OrderID
	AcceptedChatID ChatID
}

// Evaluate derives the status of a session from immutable facts and the clock.
// A nil fact means no offer has been accepted for the order yet.
// The window is inclusive: a chat is still active at exactly CreatedAt+OfferWindow.
func Evaluate(session Session, fact *OfferAcceptanceFact, now time.Time) Status {
	if fact != nil && fact.OrderID == session.OrderID {
		if fact.AcceptedChatID == session.ID {
			return StatusActive
		}
		return StatusClosedByOtherOffer
	}
	if now.Sub(session.CreatedAt) > OfferWindow {
		return StatusExpired
	}
	return StatusActive
}

func (s Status) IsActive() bool {
	return s == StatusActive
}

// IsTerminal reports whether no later fact can bring the chat back. An
// expired chat still reopens if its own offer gets accepted.
func (s Status) IsTerminal() bool {
	return s == StatusClosedByOtherOffer
}
