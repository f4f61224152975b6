package observability

import (
	"context"
	"log/slog"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"testing"

	"github.com/stretchr/testify/require"
)

type unrelated struct{}

func (unrelated) Chat() chat.ChatID { return "" }

func TestMonitoringManager_Counts_Posted_Messages(t *testing.T) {
	req := require.New(t)
	mm := NewMonitoringManager(slog.Default())

	// Given two messages and an unrelated event went through the event loop
	req.NoError(mm.Consume(context.Background(), event.MessagePosted{}))
	req.NoError(mm.Consume(context.Background(), event.MessagePosted{}))
	req.NoError(mm.Consume(context.Background(), unrelated{}))
	mm.IncrDroppedEvents()

	// When a sample is taken
	mm.Update(ProcessSample{RSSBytes: 1024, CPUPercent: 1.5}, RealtimeSample{Connections: 3, Users: 2, Rooms: 1, TypingPairs: 1})

	// Then the snapshot carries counters and samples
	stats := mm.GetLatest()
	req.Equal(uint64(2), stats.MessagesPosted)
	req.Equal(uint64(1), stats.DroppedEvents)
	req.Equal(3, stats.Connections)
	req.Equal(1, stats.TypingPairs)
	req.Equal(uint64(1024), stats.RSSBytes)
	req.Positive(stats.Goroutines)
	req.False(stats.SampledAt.IsZero())
}
