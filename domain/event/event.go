package event

import (
	"encoding/json"
	"peer-chat/domain/chat"
)

// Name is the event identifier carried on the event channel.
// The spelling of MessageReceived is part of the wire protocol.
type Name string

const (
	Setup           Name = "setup"
	Connected       Name = "connected"
	JoinChat        Name = "join chat"
	LeaveChat       Name = "leave chat"
	Typing          Name = "typing"
	StopTyping      Name = "stop typing"
	NewMessage      Name = "new message"
	MessageReceived Name = "message recieved"
	MessageSent     Name = "message sent"
	Error           Name = "error"
)

// Envelope is one frame of the event channel.
type Envelope struct {
	Event Name `json:"event"`
	Data  any  `json:"data,omitempty"`
}

// InboundEnvelope keeps Data raw until the event name tells how to decode it.
type InboundEnvelope struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type SetupPayload struct {
	UserID chat.UserID `json:"userId"`
}

// ConnectedPayload tells the client which connection it owns, so it can name it
// when posting over HTTP.
type ConnectedPayload struct {
	ConnectionID ConnectionID `json:"connectionId"`
}

type TypingPayload struct {
	ChatID chat.ChatID `json:"chatId"`
	UserID chat.UserID `json:"userId"`
}

type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ConnectionID identifies one live transport session.
type ConnectionID string

// DomainEvent is anything the fan-out worker knows how to deliver.
type DomainEvent interface {
	Chat() chat.ChatID
}

// MessagePosted is emitted once a message is persisted.
// Origin is the connection that produced it, if any, so the echo skips it.
type MessagePosted struct {
	Message    chat.Message
	Recipients []chat.UserID
	Origin     ConnectionID
}

func (m MessagePosted) Chat() chat.ChatID {
	return m.Message.ChatID
}
