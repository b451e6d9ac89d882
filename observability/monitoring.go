package observability

import (
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ProcessStats is the last sample taken by the heartbeat worker.
type ProcessStats struct {
	Pid        int32   `json:"pid"`
	Status     string  `json:"status"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
	SampledAt  string  `json:"sampled_at"`
}

// BufferStats is the last fill level sampled for a named channel.
type BufferStats struct {
	Name     string `json:"name"`
	Length   int    `json:"length"`
	Capacity int    `json:"capacity"`
}

// MonitoringStats is what /debug/stats serves.
type MonitoringStats struct {
	ChatsResolved     uint64        `json:"chats_resolved"`
	MessagesStored    uint64        `json:"messages_stored"`
	DuplicatesDropped uint64        `json:"duplicates_dropped"`
	SendsRejected     uint64        `json:"sends_rejected"`
	EventsPublished   uint64        `json:"events_published"`
	EventsDropped     uint64        `json:"events_dropped"`
	SinkFailures      uint64        `json:"sink_failures"`
	PushConnections   int64         `json:"push_connections"`
	FeedStreams       int64         `json:"feed_streams"`
	Buffers           []BufferStats `json:"buffers,omitempty"`
	AllocMemMb        uint64        `json:"alloc_mem_mb"`
	NumGC             uint32        `json:"num_gc"`
	Process           ProcessStats  `json:"process"`
}

// MonitoringManager aggregates chat counters and process samples.
type MonitoringManager struct {
	log     *slog.Logger
	mu      sync.RWMutex
	process ProcessStats
	buffers map[string]BufferStats

	chatsResolved     uint64
	messagesStored    uint64
	duplicatesDropped uint64
	sendsRejected     uint64
	eventsPublished   uint64
	eventsDropped     uint64
	sinkFailures      uint64
	pushConnections   int64
	feedStreams       int64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log, buffers: make(map[string]BufferStats)}
}

func (mm *MonitoringManager) IncrChatsResolved()     { atomic.AddUint64(&mm.chatsResolved, 1) }
func (mm *MonitoringManager) IncrMessagesStored()    { atomic.AddUint64(&mm.messagesStored, 1) }
func (mm *MonitoringManager) IncrDuplicatesDropped() { atomic.AddUint64(&mm.duplicatesDropped, 1) }
func (mm *MonitoringManager) IncrSendsRejected()     { atomic.AddUint64(&mm.sendsRejected, 1) }
func (mm *MonitoringManager) IncrEventsPublished()   { atomic.AddUint64(&mm.eventsPublished, 1) }
func (mm *MonitoringManager) IncrEventsDropped()     { atomic.AddUint64(&mm.eventsDropped, 1) }
func (mm *MonitoringManager) IncrSinkFailures()      { atomic.AddUint64(&mm.sinkFailures, 1) }

// AddPushConnections moves the open websocket gauge by delta.
func (mm *MonitoringManager) AddPushConnections(delta int64) {
	atomic.AddInt64(&mm.pushConnections, delta)
}

func (mm *MonitoringManager) AddFeedStreams(delta int64) {
	atomic.AddInt64(&mm.feedStreams, delta)
}

func (mm *MonitoringManager) UpdateProcess(stats ProcessStats) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if stats.SampledAt == "" {
		stats.SampledAt = time.Now().UTC().Format(time.RFC3339)
	}
	mm.process = stats
}

func (mm *MonitoringManager) UpdateBuffer(stats BufferStats) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.buffers[stats.Name] = stats
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.mu.RLock()
	process := mm.process
	buffers := make([]BufferStats, 0, len(mm.buffers))
	for _, b := range mm.buffers {
		buffers = append(buffers, b)
	}
	mm.mu.RUnlock()
	sort.Slice(buffers, func(i, j int) bool { return buffers[i].Name < buffers[j].Name })

	return MonitoringStats{
		ChatsResolved:     atomic.LoadUint64(&mm.chatsResolved),
		MessagesStored:    atomic.LoadUint64(&mm.messagesStored),
		DuplicatesDropped: atomic.LoadUint64(&mm.duplicatesDropped),
		SendsRejected:     atomic.LoadUint64(&mm.sendsRejected),
		EventsPublished:   atomic.LoadUint64(&mm.eventsPublished),
		EventsDropped:     atomic.LoadUint64(&mm.eventsDropped),
		SinkFailures:      atomic.LoadUint64(&mm.sinkFailures),
		PushConnections:   atomic.LoadInt64(&mm.pushConnections),
		FeedStreams:       atomic.LoadInt64(&mm.feedStreams),
		AllocMemMb:        m.Alloc / 1024 / 1024,
		NumGC:             m.NumGC,
		Process:           process,
		Buffers:           buffers,
	}
}
