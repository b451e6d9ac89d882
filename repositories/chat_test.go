package repositories

import (
	"log/slog"
	"order-chat/domain/chat"
	domainerrors "order-chat/errors"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestChatRepository_CreateIfAbsent_OnePerPair(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	session := chat.Session{ID: "chat-x", OrderID: "order-50", CounterpartyID: "vendor-a", CreatedAt: createdAt}

	// When the pair is created
	got, created, err := repository.CreateIfAbsent(session)
	req.NoError(err)
	req.True(created)
	req.Equal(session, got)

	// When another session is proposed for the same pair
	got, created, err = repository.CreateIfAbsent(chat.Session{ID: "chat-z", OrderID: "order-50", CounterpartyID: "vendor-a", CreatedAt: createdAt.Add(time.Hour)})

	// Then the first one wins
	req.NoError(err)
	req.False(created)
	req.Equal(session, got)

	_, err = repository.Get("chat-z")
	req.ErrorIs(err, domainerrors.ErrChatNotFound)
}

func TestChatRepository_FindByPair_And_ListByOrder(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	x := chat.Session{ID: "chat-x", OrderID: "order-50", CounterpartyID: "vendor-a", CreatedAt: createdAt}
	y := chat.Session{ID: "chat-y", OrderID: "order-50", CounterpartyID: "vendor-b", CreatedAt: createdAt}
	other := chat.Session{ID: "chat-o", OrderID: "order-500", CounterpartyID: "vendor-a", CreatedAt: createdAt}
	for _, s := range []chat.Session{y, x, other} {
		_, _, err := repository.CreateIfAbsent(s)
		req.NoError(err)
	}

	found, err := repository.FindByPair("order-50", "vendor-b")
	req.NoError(err)
	req.Equal(y, found)

	_, err = repository.FindByPair("order-50", "vendor-c")
	req.ErrorIs(err, domainerrors.ErrChatNotFound)

	// Then the order prefix does not leak into order-500
	sessions, err := repository.ListByOrder("order-50")
	req.NoError(err)
	req.Equal([]chat.Session{x, y}, sessions)
}

func TestChatRepository_SetTranslation(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))
	session := chat.Session{ID: "chat-x", OrderID: "order-50", CounterpartyID: "vendor-a", CreatedAt: time.Now().UTC()}
	_, _, err := repository.CreateIfAbsent(session)
	req.NoError(err)

	updated, err := repository.SetTranslation("chat-x", true)
	req.NoError(err)
	req.True(updated.TranslationEnabled)

	got, err := repository.Get("chat-x")
	req.NoError(err)
	req.True(got.TranslationEnabled)

	_, err = repository.SetTranslation("missing", true)
	req.ErrorIs(err, domainerrors.ErrChatNotFound)
}

func TestChatRepository_PairsWithSeparatorsInIDs(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Given two pairs whose ids only differ by where the separator falls
	first := chat.Session{ID: "chat-1", OrderID: "a", CounterpartyID: "b|c", CreatedAt: createdAt}
	second := chat.Session{ID: "chat-2", OrderID: "a|b", CounterpartyID: "c", CreatedAt: createdAt}
	_, created, err := repository.CreateIfAbsent(first)
	req.NoError(err)
	req.True(created)

	// Then each gets its own session
	got, created, err := repository.CreateIfAbsent(second)
	req.NoError(err)
	req.True(created)
	req.Equal(second, got)
	found, err := repository.FindByPair("a", "b|c")
	req.NoError(err)
	req.Equal(first, found)
}

func TestChatRepository_ListByOrder_OrderIDExtendedWithColon(t *testing.T) {
	req := require.New(t)
	repository := NewChatRepository(openTestDB(t), logs.GetLoggerFromLevel(slog.LevelDebug))
	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Given order "50" and order "50:eu"
	short := chat.Session{ID: "chat-s", OrderID: "50", CounterpartyID: "vendor-a", CreatedAt: createdAt}
	long := chat.Session{ID: "chat-l", OrderID: "50:eu", CounterpartyID: "vendor-a", CreatedAt: createdAt}
	for _, s := range []chat.Session{short, long} {
		_, _, err := repository.CreateIfAbsent(s)
		req.NoError(err)
	}

	// Then each order only lists its own chat
	sessions, err := repository.ListByOrder("50")
	req.NoError(err)
	req.Equal([]chat.Session{short}, sessions)
	sessions, err = repository.ListByOrder("50:eu")
	req.NoError(err)
	req.Equal([]chat.Session{long}, sessions)
}
