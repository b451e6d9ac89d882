package workers

import (
	"context"
	"log/slog"
	"order-chat/observability"
	"os"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatWorker_SamplesOwnProcess(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitoring := observability.NewMonitoringManager(log)
	worker := NewHeartbeatWorker(log, 10*time.Millisecond, monitoring)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req.NoError(worker.Run(ctx))

	stats := monitoring.GetLatest().Process
	req.Equal(int32(os.Getpid()), stats.Pid)
	req.NotZero(stats.RSSBytes)
}
