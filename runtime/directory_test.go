package runtime

import (
	"context"
	"log/slog"
	"order-chat/domain/chat"
	domainerrors "order-chat/errors"
	"order-chat/mocks"
	"order-chat/observability"
	"order-chat/repositories"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestDirectory(t *testing.T, orders *mocks.MockOrderService, now time.Time) *Directory {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return NewDirectory(log, repositories.NewChatRepository(db, log), orders,
		observability.NewMonitoringManager(log), func() time.Time { return now })
}

func TestDirectory_Resolve_ConcurrentSamePair(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	orders := mocks.NewMockOrderService(ctrl)
	orders.EXPECT().OrderExists(gomock.Any(), chat.OrderID("1001")).Return(true, nil).AnyTimes()
	orders.EXPECT().CounterpartyExists(gomock.Any(), chat.CounterpartyID("vendor-a")).Return(true, nil).AnyTimes()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	directory := newTestDirectory(t, orders, now)

	// When two callers resolve the same pair at the same time
	var wg sync.WaitGroup
	results := make([]chat.Session, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = directory.Resolve(context.Background(), "1001", "vendor-a")
		}(i)
	}
	wg.Wait()

	// Then both observe the same session
	req.NoError(errs[0])
	req.NoError(errs[1])
	req.Equal(results[0], results[1])
	req.Equal(now, results[0].CreatedAt)

	sessions, err := directory.ListByOrder(context.Background(), "1001")
	req.NoError(err)
	req.Len(sessions, 1)
}

func TestDirectory_Resolve_DistinctCounterparties(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	orders := mocks.NewMockOrderService(ctrl)
	orders.EXPECT().OrderExists(gomock.Any(), gomock.Any()).Return(true, nil).AnyTimes()
	orders.EXPECT().CounterpartyExists(gomock.Any(), gomock.Any()).Return(true, nil).AnyTimes()
	directory := newTestDirectory(t, orders, time.Now())

	x, err := directory.Resolve(context.Background(), "50", "vendor-a")
	req.NoError(err)
	y, err := directory.Resolve(context.Background(), "50", "vendor-b")
	req.NoError(err)
	req.NotEqual(x.ID, y.ID)

	got, err := directory.Get(context.Background(), x.ID)
	req.NoError(err)
	req.Equal(x, got)
}

func TestDirectory_Resolve_SeparatorInIDs(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	orders := mocks.NewMockOrderService(ctrl)
	orders.EXPECT().OrderExists(gomock.Any(), gomock.Any()).Return(true, nil).AnyTimes()
	orders.EXPECT().CounterpartyExists(gomock.Any(), gomock.Any()).Return(true, nil).AnyTimes()
	directory := newTestDirectory(t, orders, time.Now())

	first, err := directory.Resolve(context.Background(), "a", "b|c")
	req.NoError(err)
	second, err := directory.Resolve(context.Background(), "a|b", "c")
	req.NoError(err)

	req.NotEqual(first.ID, second.ID)
	req.Equal(chat.OrderID("a|b"), second.OrderID)
	req.Equal(chat.CounterpartyID("b|c"), first.CounterpartyID)
}

func TestDirectory_Resolve_InvalidReference(t *testing.T) {
	ctrl := gomock.NewController(t)
	orders := mocks.NewMockOrderService(ctrl)
	directory := newTestDirectory(t, orders, time.Now())

	t.Run("unknown order", func(t *testing.T) {
		orders.EXPECT().OrderExists(gomock.Any(), chat.OrderID("404")).Return(false, nil)
		_, err := directory.Resolve(context.Background(), "404", "vendor-a")
		require.ErrorIs(t, err, domainerrors.ErrInvalidReference)
	})

	t.Run("unknown counterparty", func(t *testing.T) {
		orders.EXPECT().OrderExists(gomock.Any(), chat.OrderID("1001")).Return(true, nil)
		orders.EXPECT().CounterpartyExists(gomock.Any(), chat.CounterpartyID("ghost")).Return(false, nil)
		_, err := directory.Resolve(context.Background(), "1001", "ghost")
		require.ErrorIs(t, err, domainerrors.ErrInvalidReference)
	})

	t.Run("empty reference", func(t *testing.T) {
		_, err := directory.Resolve(context.Background(), " ", "vendor-a")
		require.ErrorIs(t, err, domainerrors.ErrInvalidReference)
	})
}
