package workers

import (
	"context"
	"log/slog"
	"order-chat/observability"
	"time"
)

// Gauge reads the fill level of a buffered channel. len and cap never block.
type Gauge struct {
	Name  string
	Usage func() (length, capacity int)
}

// ChannelCapacityWorker periodically samples buffered channels into the
// monitoring manager and warns when one is close to full.
type ChannelCapacityWorker struct {
	log        *slog.Logger
	gauges     []Gauge
	monitoring *observability.MonitoringManager
	interval   time.Duration
	warnRatio  float64
}

func NewChannelCapacityWorker(log *slog.Logger, gauges []Gauge, monitoring *observability.MonitoringManager,
	interval time.Duration, warnRatio float64) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log:        log,
		gauges:     gauges,
		monitoring: monitoring,
		interval:   interval,
		warnRatio:  warnRatio,
	}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *ChannelCapacityWorker) sample() {
	for _, p := range w.gauges {
		length, capacity := p.Usage()
		w.monitoring.UpdateBuffer(observability.BufferStats{Name: p.Name, Length: length, Capacity: capacity})
		if capacity > 0 && float64(length)/float64(capacity) >= w.warnRatio {
			w.log.Warn("Channel close to full", "name", p.Name, "length", length, "capacity", capacity)
		}
	}
}
