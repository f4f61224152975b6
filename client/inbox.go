package client

import (
	"peer-chat/domain/chat"
	"sync"
)

type Route int

const (
	// RouteView means the message went to the open conversation.
	RouteView Route = iota
	// RouteNotification means the message was queued in the aggregator.
	RouteNotification
	// RouteDuplicate means the aggregator already held that message.
	RouteDuplicate
)

func (r Route) String() string {
	switch r {
	case RouteView:
		return "view"
	case RouteNotification:
		return "notification"
	default:
		return "duplicate"
	}
}

// Inbox decides, for each pushed message, whether it belongs to the conversation
// currently open or to the notifications. The selected chat is read under the same
// lock as the routing, so a message never lands in the aggregator for the open chat.
type Inbox struct {
	mu         sync.Mutex
	selected   chat.ChatID
	aggregator *Aggregator
	onView     func(chat.Message)
}

// NewInbox routes open-chat messages to onView, which may be nil.
func NewInbox(aggregator *Aggregator, onView func(chat.Message)) *Inbox {
	if onView == nil {
		onView = func(chat.Message) {}
	}
	return &Inbox{aggregator: aggregator, onView: onView}
}

// Deliver routes msg. onView runs after the lock is released, so it may call back into the Inbox.
func (i *Inbox) Deliver(msg chat.Message) Route {
	route := i.route(msg)
	if route == RouteView {
		i.onView(msg)
	}
	return route
}

func (i *Inbox) route(msg chat.Message) Route {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.isOpen(msg.ChatID) {
		return RouteView
	}
	if !i.aggregator.Enqueue(msg) {
		return RouteDuplicate
	}
	return RouteNotification
}

// Echo handles a message the user posted from another device. It is shown when its
// chat is open and never becomes a notification. It reports whether it was shown.
func (i *Inbox) Echo(msg chat.Message) bool {
	i.mu.Lock()
	open := i.isOpen(msg.ChatID)
	i.mu.Unlock()
	if open {
		i.onView(msg)
	}
	return open
}

func (i *Inbox) isOpen(chatID chat.ChatID) bool {
	return i.selected != "" && chatID == i.selected
}

// Open selects a chat and clears its notifications. It returns how many were cleared.
func (i *Inbox) Open(chatID chat.ChatID) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.selected = chatID
	return i.aggregator.DismissChat(chatID)
}

// Close leaves the open chat: later messages for it become notifications.
func (i *Inbox) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.selected = ""
}

func (i *Inbox) Selected() chat.ChatID {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.selected
}
