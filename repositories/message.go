package repositories

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"order-chat/domain/chat"
	domainerrors "order-chat/errors"
	"order-chat/internal/keylock"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"
	"github.com/google/uuid"
)

const (
	watchMarkerInterval = 20 * time.Millisecond
	watchMarkerTTL      = time.Minute
)

type IMessageRepository interface {
	StoreMessage(message chat.Message) (bool, error)
	GetMessage(messageID string) (chat.Message, error)
	GetMessages(query chat.ListQuery) ([]chat.Message, error)
	MarkRead(messageID, readerID string) (chat.Message, bool, error)
	Watch(ctx context.Context, chatID chat.ChatID, ready func() error, fn func(chat.Message) error) error
}

// MessageRepository is the durable message log.
//
//	msg:{chatId}:{createdAt padded}:{messageId} -> message
//	idx:msgid:{messageId}                       -> message key
type MessageRepository struct {
	db    *badger.DB
	log   *slog.Logger
	locks *keylock.Locker
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log, locks: keylock.New()}
}

func messagePrefix(chatID chat.ChatID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", chatID))
}

// messageKey pads the timestamp to 19 digits so that the lexicographic key
// order is the (createdAt, id) order.
func messageKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.ChatID, m.CreatedAt.UnixNano(), m.ID))
}

func messageIndexKey(messageID string) []byte {
	return []byte("idx:msgid:" + messageID)
}

// StoreMessage appends the message unless its id is already stored.
// It reports whether the message was inserted.
func (m MessageRepository) StoreMessage(message chat.Message) (bool, error) {
	unlock := m.locks.Lock(string(message.ChatID))
	defer unlock()

	inserted := false
	err := m.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(messageIndexKey(message.ID))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		key := messageKey(message)
		if err = txn.Set(key, encodeMessage(message)); err != nil {
			return err
		}
		inserted = true
		return txn.Set(messageIndexKey(message.ID), key)
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		m.log.Debug("Duplicate message ignored", "chat_id", message.ChatID, "message_id", message.ID)
	}
	return inserted, nil
}

func (m MessageRepository) GetMessage(messageID string) (chat.Message, error) {
	var message chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		message, _, err = m.getByID(txn, messageID)
		return err
	})
	return message, err
}

// GetMessages scans the chat prefix in key order, which is already the
// (createdAt, id) order. With a SinceID it starts right after that message;
// an unknown SinceID lists the whole chat.
func (m MessageRepository) GetMessages(query chat.ListQuery) ([]chat.Message, error) {
	var messages []chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(query.ChatID)
		seekKey := prefix
		skipFirst := false
		if query.SinceID != "" {
			since, key, err := m.getByID(txn, query.SinceID)
			switch {
			case err == nil && since.ChatID == query.ChatID:
				seekKey = key
				skipFirst = true
			case err != nil && !errors.Is(err, domainerrors.ErrMessageNotFound):
				return err
			}
		}

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		it.Seek(seekKey)
		if skipFirst && it.ValidForPrefix(prefix) {
			it.Next()
		}
		for ; it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				message, err := decodeMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead flips IsRead when the reader is not the sender. It reports
// whether the stored message changed.
func (m MessageRepository) MarkRead(messageID, readerID string) (chat.Message, bool, error) {
	message, err := m.GetMessage(messageID)
	if err != nil {
		return chat.Message{}, false, err
	}
	unlock := m.locks.Lock(string(message.ChatID))
	defer unlock()

	changed := false
	err = m.db.Update(func(txn *badger.Txn) error {
		var key []byte
		message, key, err = m.getByID(txn, messageID)
		if err != nil {
			return err
		}
		if message.IsRead || message.SenderID == readerID {
			return nil
		}
		message.IsRead = true
		changed = true
		return txn.Set(key, encodeMessage(message))
	})
	if err != nil {
		return chat.Message{}, false, err
	}
	return message, changed, nil
}

// Watch calls fn for every message written to the chat once the
// subscription is live, including rewrites such as a read flag. ready is
// called first, from the same goroutine as fn, as soon as nothing written
// afterwards can be missed. It blocks until ctx is done.
func (m MessageRepository) Watch(ctx context.Context, chatID chat.ChatID, ready func() error, fn func(chat.Message) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// DB.Subscribe gives no signal once its subscriber is registered: a
	// marker key seen by the callback is the proof.
	marker := []byte("watch:" + uuid.NewString())
	live := make(chan struct{})
	go m.writeMarker(ctx, marker, live)

	match := []pb.Match{{Prefix: messagePrefix(chatID)}, {Prefix: marker}}
	err := m.db.Subscribe(ctx, func(kvs *badger.KVList) error {
		for _, kv := range kvs.Kv {
			if bytes.Equal(kv.Key, marker) {
				select {
				case <-live:
				default:
					close(live)
					if err := ready(); err != nil {
						return err
					}
				}
				continue
			}
			if len(kv.Value) == 0 {
				continue
			}
			message, err := decodeMessage(kv.Value)
			if err != nil {
				m.log.Warn("Undecodable message in feed", "key", string(kv.Key), "error", err)
				continue
			}
			if err = fn(message); err != nil {
				return err
			}
		}
		return nil
	}, match)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// writeMarker rewrites the marker until the subscription reports it.
func (m MessageRepository) writeMarker(ctx context.Context, marker []byte, live <-chan struct{}) {
	ticker := time.NewTicker(watchMarkerInterval)
	defer ticker.Stop()
	for {
		err := m.db.Update(func(txn *badger.Txn) error {
			return txn.SetEntry(badger.NewEntry(marker, []byte{1}).WithTTL(watchMarkerTTL))
		})
		if err != nil && ctx.Err() == nil {
			m.log.Warn("Watch marker write failed", "error", err)
		}
		select {
		case <-live:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m MessageRepository) getByID(txn *badger.Txn, messageID string) (chat.Message, []byte, error) {
	item, err := txn.Get(messageIndexKey(messageID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return chat.Message{}, nil, fmt.Errorf("%w: %s", domainerrors.ErrMessageNotFound, messageID)
	}
	if err != nil {
		return chat.Message{}, nil, err
	}
	key, err := item.ValueCopy(nil)
	if err != nil {
		return chat.Message{}, nil, err
	}
	item, err = txn.Get(key)
	if err != nil {
		return chat.Message{}, nil, err
	}
	var message chat.Message
	err = item.Value(func(val []byte) error {
		message, err = decodeMessage(val)
		return err
	})
	return message, key, err
}
