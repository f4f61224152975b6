package runtime

import (
	"log/slog"
	"peer-chat/contract"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
)

// DropHandler is told about a connection the multiplexer gave up on, with the rooms it had joined.
type DropHandler func(conn contract.Conn, rooms []chat.ChatID)

// Multiplexer fans envelopes out to the live connections of a room or of a user.
// Sends never block: a connection that cannot take the envelope is dropped and never retried.
type Multiplexer struct {
	registry contract.IRegistry
	log      *slog.Logger
	onDrop   DropHandler
}

func NewMultiplexer(registry contract.IRegistry, log *slog.Logger) *Multiplexer {
	return &Multiplexer{registry: registry, log: log}
}

// OnDrop installs the hook run after a dead connection has been unregistered.
func (m *Multiplexer) OnDrop(handler DropHandler) {
	m.onDrop = handler
}

func (m *Multiplexer) Broadcast(chatID chat.ChatID, env event.Envelope, exclude contract.Exclude) int {
	return m.deliver(m.registry.HandlesInRoom(chatID), env, exclude)
}

func (m *Multiplexer) NotifyUser(userID chat.UserID, env event.Envelope, exclude contract.Exclude) int {
	if exclude.User == userID {
		return 0
	}
	return m.deliver(m.registry.HandlesFor(userID), env, exclude)
}

func (m *Multiplexer) deliver(handles []contract.Conn, env event.Envelope, exclude contract.Exclude) int {
	delivered := 0
	for _, conn := range handles {
		if conn.ID() == exclude.Connection || (exclude.User != "" && conn.UserID() == exclude.User) {
			continue
		}
		if err := conn.Send(env); err != nil {
			m.drop(conn, err)
			continue
		}
		delivered++
	}
	return delivered
}

func (m *Multiplexer) drop(conn contract.Conn, cause error) {
	_, rooms, ok := m.registry.Unregister(conn.ID())
	conn.Close()
	if !ok {
		return
	}
	m.log.Debug("Dropping dead connection", "conn_id", conn.ID(), "user_id", conn.UserID(), "error", cause)
	if m.onDrop != nil {
		m.onDrop(conn, rooms)
	}
}
