package runtime

import (
	"fmt"
	"peer-chat/contract"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"peer-chat/errors"
	"sync"
)

type Set[K comparable] map[K]struct{}

func (s Set[K]) add(k K) { s[k] = struct{}{} }

// Stats is a snapshot of the live bindings held by the registry.
type Stats struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
	Rooms       int `json:"rooms"`
}

// Registry binds users to their live connections and connections to the rooms they joined.
// The per-user binding is the unit of addressing: a user may hold several connections
// (one per device) and every one of them is reachable through NotifyUser.
type Registry struct {
	mu        sync.RWMutex
	conns     map[event.ConnectionID]contract.Conn
	users     map[chat.UserID]Set[event.ConnectionID]
	rooms     map[chat.ChatID]Set[event.ConnectionID]
	connRooms map[event.ConnectionID]Set[chat.ChatID]
}

func NewRegistry() *Registry {
	return &Registry{
		conns:     make(map[event.ConnectionID]contract.Conn),
		users:     make(map[chat.UserID]Set[event.ConnectionID]),
		rooms:     make(map[chat.ChatID]Set[event.ConnectionID]),
		connRooms: make(map[event.ConnectionID]Set[chat.ChatID]),
	}
}

// Register makes conn addressable through userID.
// Registering the same connection twice keeps a single binding.
func (r *Registry) Register(userID chat.UserID, conn contract.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[conn.ID()] = conn
	if _, ok := r.users[userID]; !ok {
		r.users[userID] = make(Set[event.ConnectionID])
	}
	r.users[userID].add(conn.ID())
}

// Unregister removes a connection from every binding and returns the rooms it had joined.
// It is idempotent: the boolean is false when the connection was already gone.
func (r *Registry) Unregister(connID event.ConnectionID) (contract.Conn, []chat.ChatID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return nil, nil, false
	}
	delete(r.conns, connID)

	if handles, ok := r.users[conn.UserID()]; ok {
		delete(handles, connID)
		if len(handles) == 0 {
			delete(r.users, conn.UserID())
		}
	}

	var joined []chat.ChatID
	for chatID := range r.connRooms[connID] {
		joined = append(joined, chatID)
		r.removeFromRoom(connID, chatID)
	}
	delete(r.connRooms, connID)
	return conn, joined, true
}

// JoinRoom subscribes a live connection to a chat room. Joining twice is a no-op.
func (r *Registry) JoinRoom(connID event.ConnectionID, chatID chat.ChatID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		return fmt.Errorf("%w: %s", errors.ErrConnectionGone, connID)
	}
	if _, ok := r.rooms[chatID]; !ok {
		r.rooms[chatID] = make(Set[event.ConnectionID])
	}
	r.rooms[chatID].add(connID)
	if _, ok := r.connRooms[connID]; !ok {
		r.connRooms[connID] = make(Set[chat.ChatID])
	}
	r.connRooms[connID].add(chatID)
	return nil
}

func (r *Registry) LeaveRoom(connID event.ConnectionID, chatID chat.ChatID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeFromRoom(connID, chatID)
	if joined, ok := r.connRooms[connID]; ok {
		delete(joined, chatID)
		if len(joined) == 0 {
			delete(r.connRooms, connID)
		}
	}
}

// removeFromRoom never leaves an empty set behind. Caller holds the lock.
func (r *Registry) removeFromRoom(connID event.ConnectionID, chatID chat.ChatID) {
	if members, ok := r.rooms[chatID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, chatID)
		}
	}
}

func (r *Registry) Lookup(connID event.ConnectionID) (contract.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connID]
	return conn, ok
}

func (r *Registry) HandlesFor(userID chat.UserID) []contract.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolve(r.users[userID])
}

func (r *Registry) HandlesInRoom(chatID chat.ChatID) []contract.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolve(r.rooms[chatID])
}

// UserInRoom reports whether any connection of userID is still joined to chatID.
func (r *Registry) UserInRoom(userID chat.UserID, chatID chat.ChatID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[chatID]
	for connID := range r.users[userID] {
		if _, ok := members[connID]; ok {
			return true
		}
	}
	return false
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Connections: len(r.conns), Users: len(r.users), Rooms: len(r.rooms)}
}

func (r *Registry) resolve(ids Set[event.ConnectionID]) []contract.Conn {
	if len(ids) == 0 {
		return nil
	}
	handles := make([]contract.Conn, 0, len(ids))
	for id := range ids {
		if conn, ok := r.conns[id]; ok {
			handles = append(handles, conn)
		}
	}
	return handles
}
