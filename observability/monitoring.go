package observability

import (
	"context"
	"log/slog"
	"peer-chat/domain/event"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// MonitoringStats is the snapshot served on /debug/stats.
type MonitoringStats struct {
	// --- REALTIME ---
	Connections int `json:"connections"`
	Users       int `json:"users"`
	Rooms       int `json:"rooms"`
	TypingPairs int `json:"typing_pairs"`

	// --- TRAFFIC ---
	MessagesPosted uint64  `json:"messages_posted"`
	MessagesRate   float64 `json:"messages_per_second"`
	DroppedEvents  uint64  `json:"dropped_events"`

	// --- PROCESS ---
	RSSBytes   uint64    `json:"rss_bytes"`
	CPUPercent float64   `json:"cpu_percent"`
	AllocMemMb uint64    `json:"alloc_mem_mb"`
	NumGC      uint32    `json:"num_gc"`
	Goroutines int       `json:"goroutines"`
	SampledAt  time.Time `json:"sampled_at"`
}

// ProcessSample is what the health worker measured about the process.
type ProcessSample struct {
	RSSBytes   uint64
	CPUPercent float64
}

// RealtimeSample is what the health worker read from the registry and presence tracker.
type RealtimeSample struct {
	Connections int
	Users       int
	Rooms       int
	TypingPairs int
}

// MonitoringManager aggregates counters fed by the event loop and samples taken by the health worker.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats MonitoringStats

	messagesPosted uint64
	sinceLastCheck uint64
	droppedEvents  uint64
	lastCheck      time.Time
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log, lastCheck: time.Now()}
}

// Consume counts persisted messages. It is registered as a fan-out sink.
func (mm *MonitoringManager) Consume(_ context.Context, e event.DomainEvent) error {
	if _, ok := e.(event.MessagePosted); ok {
		atomic.AddUint64(&mm.messagesPosted, 1)
		atomic.AddUint64(&mm.sinceLastCheck, 1)
	}
	return nil
}

// IncrDroppedEvents counts domain events lost because the event loop was saturated.
func (mm *MonitoringManager) IncrDroppedEvents() {
	atomic.AddUint64(&mm.droppedEvents, 1)
}

// Update folds a new sample into the snapshot and computes the message rate since the last one.
func (mm *MonitoringManager) Update(process ProcessSample, realtime RealtimeSample) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	now := time.Now()
	if duration := now.Sub(mm.lastCheck).Seconds(); duration > 0 {
		mm.latestStats.MessagesRate = float64(atomic.SwapUint64(&mm.sinceLastCheck, 0)) / duration
	}
	mm.lastCheck = now

	mm.latestStats.Connections = realtime.Connections
	mm.latestStats.Users = realtime.Users
	mm.latestStats.Rooms = realtime.Rooms
	mm.latestStats.TypingPairs = realtime.TypingPairs
	mm.latestStats.RSSBytes = process.RSSBytes
	mm.latestStats.CPUPercent = process.CPUPercent

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC
	mm.latestStats.Goroutines = runtime.NumGoroutine()
	mm.latestStats.SampledAt = now.UTC()

	mm.log.Debug("Stats updated",
		"connections", realtime.Connections,
		"rooms", realtime.Rooms,
		"messages_rate", mm.latestStats.MessagesRate,
		"rss_bytes", process.RSSBytes,
	)
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	stats := mm.latestStats
	stats.MessagesPosted = atomic.LoadUint64(&mm.messagesPosted)
	stats.DroppedEvents = atomic.LoadUint64(&mm.droppedEvents)
	return stats
}
