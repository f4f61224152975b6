package client

import (
	"peer-chat/domain/chat"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func message(chatID chat.ChatID, content string) chat.Message {
	return chat.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  "bob",
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

func TestAggregator_Enqueue_Dedupes_By_ID(t *testing.T) {
	req := require.New(t)
	agg := NewAggregator()
	first := message("chat-1", "hello")

	// Given a message already pending
	req.True(agg.Enqueue(first))

	// When the same message arrives again, even with another content
	again := first
	again.Content = "hello (relayed)"

	// Then it is counted once
	req.False(agg.Enqueue(again))
	req.Equal(1, agg.CountUnread())
	req.Equal("hello", agg.Pending()[0].Content)
}

func TestAggregator_Most_Recent_First(t *testing.T) {
	req := require.New(t)
	agg := NewAggregator()
	one, two, three := message("chat-1", "one"), message("chat-2", "two"), message("chat-1", "three")
	agg.Enqueue(one)
	agg.Enqueue(two)
	agg.Enqueue(three)

	pending := agg.Pending()
	req.Equal([]string{"three", "two", "one"}, []string{pending[0].Content, pending[1].Content, pending[2].Content})

	// Pending is a copy
	pending[0].Content = "mutated"
	req.Equal("three", agg.Pending()[0].Content)
}

func TestAggregator_Dismiss(t *testing.T) {
	req := require.New(t)
	agg := NewAggregator()
	one, two, three := message("chat-1", "one"), message("chat-2", "two"), message("chat-1", "three")
	agg.Enqueue(one)
	agg.Enqueue(two)
	agg.Enqueue(three)

	agg.Dismiss(two.ID)
	req.Equal(2, agg.CountUnread())

	agg.Dismiss(uuid.New())
	req.Equal(2, agg.CountUnread())

	req.Equal(2, agg.DismissChat("chat-1"))
	req.Zero(agg.CountUnread())

	agg.Enqueue(one)
	agg.DismissAll()
	req.Empty(agg.Pending())
}
