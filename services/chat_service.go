//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"peer-chat/contract"
	"peer-chat/domain/chat"
	"peer-chat/domain/event"
	"peer-chat/errors"
	"peer-chat/moderation"
	"peer-chat/repositories"
)

type IChatService interface {
	AccessChat(ctx context.Context, caller, other chat.UserID) (chat.Chat, error)
	FetchChats(ctx context.Context, caller chat.UserID) ([]chat.Chat, error)
	CreateGroup(ctx context.Context, cmd chat.CreateGroupCommand) (chat.Chat, error)
	RenameGroup(ctx context.Context, cmd chat.MembershipCommand) (chat.Chat, error)
	AddToGroup(ctx context.Context, cmd chat.MembershipCommand) (chat.Chat, error)
	RemoveFromGroup(ctx context.Context, cmd chat.MembershipCommand) (chat.Chat, error)
	SendMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error)
	GetMessages(ctx context.Context, cmd chat.GetMessageCommand) ([]chat.Message, *string, error)
	MarkRead(ctx context.Context, cmd chat.MarkReadCommand) (chat.Message, error)
	Relay(ctx context.Context, chatID chat.ChatID, messageID chat.MessageID, caller chat.UserID, origin event.ConnectionID) error
}

// Reviewer rewrites message content before it is stored.
type Reviewer interface {
	Review(content string) moderation.Verdict
}

type Publisher interface {
	Publish(ctx context.Context, evt event.DomainEvent) error
}

type ChatService struct {
	chats     repositories.IChatRepository
	messages  repositories.IMessageRepository
	members   IMembershipResolver
	registry  contract.IRegistry
	presence  contract.IPresence
	reviewer  Reviewer
	publisher Publisher
	log       *slog.Logger
}

func NewChatService(
	chats repositories.IChatRepository,
	messages repositories.IMessageRepository,
	members IMembershipResolver,
	registry contract.IRegistry,
	presence contract.IPresence,
	reviewer Reviewer,
	publisher Publisher,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		chats:     chats,
		messages:  messages,
		members:   members,
		registry:  registry,
		presence:  presence,
		reviewer:  reviewer,
		publisher: publisher,
		log:       log,
	}
}

// AccessChat returns the direct chat between caller and other, creating it on first contact.
func (s *ChatService) AccessChat(ctx context.Context, caller, other chat.UserID) (chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return chat.Chat{}, err
	}
	c, created, err := s.chats.CreateOrGetDirectChat(caller, other)
	if err != nil {
		return chat.Chat{}, err
	}
	if created {
		s.log.Info("Direct chat opened", "chat_id", c.ID)
	}
	return c, nil
}

func (s *ChatService) FetchChats(ctx context.Context, caller chat.UserID) ([]chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.chats.ListChatsForUser(caller)
}

func (s *ChatService) CreateGroup(ctx context.Context, cmd chat.CreateGroupCommand) (chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return chat.Chat{}, err
	}
	return s.chats.CreateGroupChat(cmd.Creator, cmd.Name, cmd.Members)
}

func (s *ChatService) RenameGroup(ctx context.Context, cmd chat.MembershipCommand) (chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return chat.Chat{}, err
	}
	return s.chats.RenameChat(cmd.ChatID, cmd.Actor, cmd.Name)
}

func (s *ChatService) AddToGroup(ctx context.Context, cmd chat.MembershipCommand) (chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return chat.Chat{}, err
	}
	return s.chats.AddMember(cmd.ChatID, cmd.Actor, cmd.Target)
}

// RemoveFromGroup also takes the removed user's live connections out of the room,
// so they stop receiving its typing events right away.
func (s *ChatService) RemoveFromGroup(ctx context.Context, cmd chat.MembershipCommand) (chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return chat.Chat{}, err
	}
	c, err := s.chats.RemoveMember(cmd.ChatID, cmd.Actor, cmd.Target)
	if err != nil {
		return chat.Chat{}, err
	}
	for _, conn := range s.registry.HandlesFor(cmd.Target) {
		s.registry.LeaveRoom(conn.ID(), cmd.ChatID)
	}
	s.presence.StopTyping(cmd.ChatID, cmd.Target)
	return c, nil
}

// SendMessage moderates, persists and then hands the message to the fan-out loop.
// A message that could not be queued is still stored: recipients get it from history.
func (s *ChatService) SendMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	content := cmd.Content
	if s.reviewer != nil {
		content = s.reviewer.Review(content).Content
	}
	msg, err := s.messages.AppendMessage(cmd.ChatID, cmd.SenderID, content)
	if err != nil {
		return chat.Message{}, err
	}
	if err = s.dispatch(ctx, msg, event.ConnectionID(cmd.Origin)); err != nil {
		s.log.Warn("Message stored but not dispatched", "message_id", msg.ID, "error", err)
	}
	return msg, nil
}

// Relay re-sends an already stored message, for clients still emitting "new message"
// after posting over HTTP. Only the author may relay it.
func (s *ChatService) Relay(ctx context.Context, chatID chat.ChatID, messageID chat.MessageID, caller chat.UserID, origin event.ConnectionID) error {
	msg, err := s.messages.GetMessage(chatID, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != caller {
		return fmt.Errorf("%w: only the author can relay a message", errors.ErrForbidden)
	}
	return s.dispatch(ctx, msg, origin)
}

func (s *ChatService) dispatch(ctx context.Context, msg chat.Message, origin event.ConnectionID) error {
	recipients, err := s.members.MembersOf(msg.ChatID)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, event.MessagePosted{Message: msg, Recipients: recipients, Origin: origin})
}

// GetMessages returns one page of history to a current member.
func (s *ChatService) GetMessages(ctx context.Context, cmd chat.GetMessageCommand) ([]chat.Message, *string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	ok, err := s.members.IsMember(cmd.ChatID, cmd.UserID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", errors.ErrNotMember, cmd.UserID)
	}
	return s.messages.GetMessages(cmd.ChatID, cmd.Cursor)
}

func (s *ChatService) MarkRead(ctx context.Context, cmd chat.MarkReadCommand) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	return s.messages.MarkRead(cmd.ChatID, cmd.MessageID, cmd.Reader)
}
