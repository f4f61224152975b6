//go:generate go run go.uber.org/mock/mockgen -source=realtime_service.go -destination=../mocks/mock_realtime_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"peer-chat/contract"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"peer-chat/errors"
)

// IRealtimeService handles what clients emit on the event channel.
type IRealtimeService interface {
	Setup(conn contract.Conn, userID chat.UserID) error
	Join(ctx context.Context, conn contract.Conn, chatID chat.ChatID) error
	Leave(conn contract.Conn, chatID chat.ChatID)
	Typing(conn contract.Conn, chatID chat.ChatID) error
	StopTyping(conn contract.Conn, chatID chat.ChatID)
	RelayMessage(ctx context.Context, conn contract.Conn, chatID chat.ChatID, messageID chat.MessageID) error
	Disconnect(conn contract.Conn)
}

type RealtimeService struct {
	registry contract.IRegistry
	presence contract.IPresence
	members  IMembershipResolver
	chats    IChatService
	log      *slog.Logger
}

func NewRealtimeService(
	registry contract.IRegistry,
	presence contract.IPresence,
	members IMembershipResolver,
	chats IChatService,
	log *slog.Logger,
) *RealtimeService {
	return &RealtimeService{registry: registry, presence: presence, members: members, chats: chats, log: log}
}

// Setup binds the connection to its user and acknowledges with "connected".
// The claimed user must be the authenticated owner of the connection.
func (s *RealtimeService) Setup(conn contract.Conn, userID chat.UserID) error {
	if userID != conn.UserID() {
		return fmt.Errorf("%w: setup as %s on a connection of %s", errors.ErrForbidden, userID, conn.UserID())
	}
	s.registry.Register(userID, conn)
	s.log.Debug("Connection set up", "conn_id", conn.ID(), "user_id", userID)
	return conn.Send(event.Envelope{Event: event.Connected, Data: event.ConnectedPayload{ConnectionID: conn.ID()}})
}

// Join subscribes the connection to a chat room. Only current members may join.
func (s *RealtimeService) Join(ctx context.Context, conn contract.Conn, chatID chat.ChatID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ok, err := s.members.IsMember(chatID, conn.UserID())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s is not a member of %s", errors.ErrForbidden, conn.UserID(), chatID)
	}
	return s.registry.JoinRoom(conn.ID(), chatID)
}

func (s *RealtimeService) Leave(conn contract.Conn, chatID chat.ChatID) {
	s.registry.LeaveRoom(conn.ID(), chatID)
	s.presence.ForgetUser(conn.UserID(), []chat.ChatID{chatID})
}

// Typing is only relayed for a room the user has joined.
func (s *RealtimeService) Typing(conn contract.Conn, chatID chat.ChatID) error {
	if !s.registry.UserInRoom(conn.UserID(), chatID) {
		return fmt.Errorf("%w: join %s before typing", errors.ErrForbidden, chatID)
	}
	s.presence.StartTyping(chatID, conn.UserID())
	return nil
}

func (s *RealtimeService) StopTyping(conn contract.Conn, chatID chat.ChatID) {
	s.presence.StopTyping(chatID, conn.UserID())
}

func (s *RealtimeService) RelayMessage(ctx context.Context, conn contract.Conn, chatID chat.ChatID, messageID chat.MessageID) error {
	return s.chats.Relay(ctx, chatID, messageID, conn.UserID(), conn.ID())
}

// Disconnect releases every binding of the connection. Calling it twice is harmless.
func (s *RealtimeService) Disconnect(conn contract.Conn) {
	_, rooms, ok := s.registry.Unregister(conn.ID())
	if !ok {
		return
	}
	s.HandleDrop(conn, rooms)
}

// HandleDrop forgets the typing state of a connection that is already unregistered.
func (s *RealtimeService) HandleDrop(conn contract.Conn, rooms []chat.ChatID) {
	s.presence.ForgetUser(conn.UserID(), rooms)
	s.log.Debug("Connection released", "conn_id", conn.ID(), "user_id", conn.UserID(), "rooms", len(rooms))
}
