//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Conn is one live transport session owned by one user.
// Send must not block: a full or closed connection returns an error.
type Conn interface {
	ID() event.ConnectionID
	UserID() chat.UserID
	Send(env event.Envelope) error
	Close()
}

// Exclude removes a connection and/or every connection of a user from a fan-out.
type Exclude struct {
	Connection event.ConnectionID
	User       chat.UserID
}

type IRegistry interface {
	Register(userID chat.UserID, conn Conn)
	Unregister(connID event.ConnectionID) (Conn, []chat.ChatID, bool)
	JoinRoom(connID event.ConnectionID, chatID chat.ChatID) error
	LeaveRoom(connID event.ConnectionID, chatID chat.ChatID)
	Lookup(connID event.ConnectionID) (Conn, bool)
	HandlesFor(userID chat.UserID) []Conn
	HandlesInRoom(chatID chat.ChatID) []Conn
	UserInRoom(userID chat.UserID, chatID chat.ChatID) bool
}

type IMultiplexer interface {
	Broadcast(chatID chat.ChatID, env event.Envelope, exclude Exclude) int
	NotifyUser(userID chat.UserID, env event.Envelope, exclude Exclude) int
}

type IPresence interface {
	StartTyping(chatID chat.ChatID, userID chat.UserID)
	StopTyping(chatID chat.ChatID, userID chat.UserID)
	ForgetUser(userID chat.UserID, chats []chat.ChatID)
}

// EventSink receives domain events from the fan-out worker.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}
