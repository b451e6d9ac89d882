package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"order-chat/contract"
	"order-chat/domain/chat"
	domainerrors "order-chat/errors"
	"order-chat/internal/keylock"
	"order-chat/observability"
	"order-chat/repositories"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Directory owns the (order, counterparty) -> chat binding.
type Directory struct {
	log        *slog.Logger
	chats      repositories.IChatRepository
	orders     contract.OrderService
	monitoring *observability.MonitoringManager
	locks      *keylock.Locker
	now        func() time.Time
}

func NewDirectory(log *slog.Logger, chats repositories.IChatRepository, orders contract.OrderService,
	monitoring *observability.MonitoringManager, now func() time.Time) *Directory {
	return &Directory{
		log:        log,
		chats:      chats,
		orders:     orders,
		monitoring: monitoring,
		locks:      keylock.New(),
		now:        now,
	}
}

// Resolve returns the chat of the pair, creating it on first use.
// Concurrent calls for the same pair observe the same session.
func (d *Directory) Resolve(ctx context.Context, orderID chat.OrderID, counterpartyID chat.CounterpartyID) (chat.Session, error) {
	if err := d.validate(ctx, orderID, counterpartyID); err != nil {
		return chat.Session{}, err
	}

	unlock := d.locks.Lock(chat.PairKey(orderID, counterpartyID))
	defer unlock()

	session, err := d.chats.FindByPair(orderID, counterpartyID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, domainerrors.ErrChatNotFound) {
		return chat.Session{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return chat.Session{}, err
	}
	session, created, err := d.chats.CreateIfAbsent(chat.Session{
		ID:             chat.ChatID(id.String()),
		OrderID:        orderID,
		CounterpartyID: counterpartyID,
		CreatedAt:      d.now().UTC(),
	})
	if err != nil {
		return chat.Session{}, err
	}
	if created {
		d.monitoring.IncrChatsResolved()
		d.log.Info("Chat opened", "chat_id", session.ID, "order_id", orderID, "counterparty_id", counterpartyID)
	}
	return session, nil
}

func (d *Directory) Get(_ context.Context, chatID chat.ChatID) (chat.Session, error) {
	return d.chats.Get(chatID)
}

func (d *Directory) ListByOrder(_ context.Context, orderID chat.OrderID) ([]chat.Session, error) {
	return d.chats.ListByOrder(orderID)
}

func (d *Directory) SetTranslation(_ context.Context, chatID chat.ChatID, enabled bool) (chat.Session, error) {
	return d.chats.SetTranslation(chatID, enabled)
}

func (d *Directory) validate(ctx context.Context, orderID chat.OrderID, counterpartyID chat.CounterpartyID) error {
	if strings.TrimSpace(string(orderID)) == "" || strings.TrimSpace(string(counterpartyID)) == "" {
		return fmt.Errorf("%w: order and counterparty are required", domainerrors.ErrInvalidReference)
	}
	ok, err := d.orders.OrderExists(ctx, orderID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: unknown order %s", domainerrors.ErrInvalidReference, orderID)
	}
	ok, err = d.orders.CounterpartyExists(ctx, counterpartyID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: unknown counterparty %s", domainerrors.ErrInvalidReference, counterpartyID)
	}
	return nil
}
