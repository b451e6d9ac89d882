package repositories

import (
	"errors"
	"fmt"
	"log/slog"
	"order-chat/domain/chat"
	domainerrors "order-chat/errors"

	"github.com/dgraph-io/badger/v4"
)

type IChatRepository interface {
	CreateIfAbsent(session chat.Session) (chat.Session, bool, error)
	Get(chatID chat.ChatID) (chat.Session, error)
	FindByPair(orderID chat.OrderID, counterpartyID chat.CounterpartyID) (chat.Session, error)
	ListByOrder(orderID chat.OrderID) ([]chat.Session, error)
	SetTranslation(chatID chat.ChatID, enabled bool) (chat.Session, error)
}

// ChatRepository keeps one record per chat plus two indexes:
//
//	chat:{chatId}                                       -> session
//	idx:pair:{len(orderId)}:{orderId}|{counterpartyId}  -> chatId
//	idx:order:{len(orderId)}:{orderId}:{chatId}         -> empty
//
// Caller supplied ids are length prefixed, so one order's prefix never
// covers another order's keys.
type ChatRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChatRepository(db *badger.DB, log *slog.Logger) ChatRepository {
	return ChatRepository{db: db, log: log}
}

func chatKey(chatID chat.ChatID) []byte {
	return []byte(fmt.Sprintf("chat:%s", chatID))
}

func pairKey(orderID chat.OrderID, counterpartyID chat.CounterpartyID) []byte {
	return []byte("idx:pair:" + chat.PairKey(orderID, counterpartyID))
}

func orderPrefix(orderID chat.OrderID) []byte {
	return []byte(fmt.Sprintf("idx:order:%d:%s:", len(orderID), orderID))
}

// CreateIfAbsent stores the session unless its pair already owns one, in
// which case the existing session is returned with created=false.
func (r ChatRepository) CreateIfAbsent(session chat.Session) (chat.Session, bool, error) {
	var result chat.Session
	created := false
	err := r.db.Update(func(txn *badger.Txn) error {
		existing, err := r.findByPair(txn, session.OrderID, session.CounterpartyID)
		switch {
		case err == nil:
			result = existing
			return nil
		case !errors.Is(err, domainerrors.ErrChatNotFound):
			return err
		}
		if err = txn.Set(chatKey(session.ID), encodeSession(session)); err != nil {
			return err
		}
		if err = txn.Set(pairKey(session.OrderID, session.CounterpartyID), []byte(session.ID)); err != nil {
			return err
		}
		orderKey := append(orderPrefix(session.OrderID), []byte(session.ID)...)
		if err = txn.Set(orderKey, nil); err != nil {
			return err
		}
		result = session
		created = true
		return nil
	})
	if err != nil {
		return chat.Session{}, false, err
	}
	if created {
		r.log.Debug("Chat created", "chat_id", result.ID, "order_id", result.OrderID)
	}
	return result, created, nil
}

func (r ChatRepository) Get(chatID chat.ChatID) (chat.Session, error) {
	var session chat.Session
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		session, err = r.get(txn, chatID)
		return err
	})
	return session, err
}

func (r ChatRepository) FindByPair(orderID chat.OrderID, counterpartyID chat.CounterpartyID) (chat.Session, error) {
	var session chat.Session
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		session, err = r.findByPair(txn, orderID, counterpartyID)
		return err
	})
	return session, err
}

// ListByOrder returns every chat bound to the order, in chat id order.
func (r ChatRepository) ListByOrder(orderID chat.OrderID) ([]chat.Session, error) {
	var sessions []chat.Session
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := orderPrefix(orderID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		var ids []chat.ChatID
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, chat.ChatID(it.Item().Key()[len(prefix):]))
		}
		for _, id := range ids {
			session, err := r.get(txn, id)
			if err != nil {
				return err
			}
			sessions = append(sessions, session)
		}
		return nil
	})
	return sessions, err
}

func (r ChatRepository) SetTranslation(chatID chat.ChatID, enabled bool) (chat.Session, error) {
	var session chat.Session
	err := r.db.Update(func(txn *badger.Txn) error {
		var err error
		session, err = r.get(txn, chatID)
		if err != nil {
			return err
		}
		session.TranslationEnabled = enabled
		return txn.Set(chatKey(chatID), encodeSession(session))
	})
	return session, err
}

func (r ChatRepository) get(txn *badger.Txn, chatID chat.ChatID) (chat.Session, error) {
	item, err := txn.Get(chatKey(chatID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return chat.Session{}, fmt.Errorf("%w: %s", domainerrors.ErrChatNotFound, chatID)
	}
	if err != nil {
		return chat.Session{}, err
	}
	var session chat.Session
	err = item.Value(func(val []byte) error {
		session, err = decodeSession(val)
		return err
	})
	return session, err
}

func (r ChatRepository) findByPair(txn *badger.Txn, orderID chat.OrderID, counterpartyID chat.CounterpartyID) (chat.Session, error) {
	item, err := txn.Get(pairKey(orderID, counterpartyID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return chat.Session{}, fmt.Errorf("%w: pair %s", domainerrors.ErrChatNotFound, chat.PairKey(orderID, counterpartyID))
	}
	if err != nil {
		return chat.Session{}, err
	}
	id, err := item.ValueCopy(nil)
	if err != nil {
		return chat.Session{}, err
	}
	return r.get(txn, chat.ChatID(id))
}
