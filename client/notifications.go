package client

import (
	"peer-chat/domain/chat"
	"slices"
	"sync"
)

// Aggregator keeps the messages delivered for chats that are not open,
// most recent first. A message is identified by its ID, never by the value received,
// so a message pushed twice (relay, reconnect) is only counted once.
type Aggregator struct {
	mu      sync.Mutex
	pending []chat.Message
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Enqueue reports whether the message was added.
func (a *Aggregator) Enqueue(msg chat.Message) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if slices.ContainsFunc(a.pending, func(m chat.Message) bool { return m.ID == msg.ID }) {
		return false
	}
	a.pending = slices.Insert(a.pending, 0, msg)
	return true
}

func (a *Aggregator) Dismiss(messageID chat.MessageID) {
	a.remove(func(m chat.Message) bool { return m.ID == messageID })
}

// DismissChat drops every notification of a chat and returns how many there were.
func (a *Aggregator) DismissChat(chatID chat.ChatID) int {
	return a.remove(func(m chat.Message) bool { return m.ChatID == chatID })
}

func (a *Aggregator) DismissAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = nil
}

func (a *Aggregator) CountUnread() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Pending returns a copy of the notifications, most recent first.
func (a *Aggregator) Pending() []chat.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.pending)
}

func (a *Aggregator) remove(match func(chat.Message) bool) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	before := len(a.pending)
	a.pending = slices.DeleteFunc(a.pending, match)
	return before - len(a.pending)
}
