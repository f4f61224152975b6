//go:generate go run go.uber.org/mock/mockgen -source=membership.go -destination=../mocks/mock_membership.go -package=mocks
package services

import (
	"peer-chat/domain/chat"
	"peer-chat/repositories"
)

// IMembershipResolver answers who belongs to which chat.
// Every call reads the store, nothing is cached.
type IMembershipResolver interface {
	MembersOf(chatID chat.ChatID) ([]chat.UserID, error)
	IsMember(chatID chat.ChatID, userID chat.UserID) (bool, error)
	ChatsOf(userID chat.UserID) ([]chat.ChatID, error)
	AdminOf(chatID chat.ChatID) (*chat.UserID, error)
}

type MembershipResolver struct {
	chats repositories.IChatRepository
}

func NewMembershipResolver(chats repositories.IChatRepository) MembershipResolver {
	return MembershipResolver{chats: chats}
}

func (m MembershipResolver) MembersOf(chatID chat.ChatID) ([]chat.UserID, error) {
	c, err := m.chats.GetChat(chatID)
	if err != nil {
		return nil, err
	}
	return c.Members, nil
}

// IsMember is false for inert chats since nobody belongs to them anymore.
func (m MembershipResolver) IsMember(chatID chat.ChatID, userID chat.UserID) (bool, error) {
	c, err := m.chats.GetChat(chatID)
	if err != nil {
		return false, err
	}
	return c.HasMember(userID), nil
}

func (m MembershipResolver) ChatsOf(userID chat.UserID) ([]chat.ChatID, error) {
	chats, err := m.chats.ListChatsForUser(userID)
	if err != nil {
		return nil, err
	}
	ids := make([]chat.ChatID, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// AdminOf is nil for direct chats.
func (m MembershipResolver) AdminOf(chatID chat.ChatID) (*chat.UserID, error) {
	c, err := m.chats.GetChat(chatID)
	if err != nil {
		return nil, err
	}
	return c.GroupAdmin, nil
}
