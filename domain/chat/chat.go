// Package chat contains the core concepts of the conversation system.
// Chats and messages are validated here; no runtime, network or storage logic belongs in this package.
package chat

import (
	"fmt"
	"peer-chat/errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MinGroupSize is the smallest group, creator included. Fewer members is a direct chat.
const MinGroupSize = 3

type ChatID string

type UserID string

type MessageID = uuid.UUID

// MessageRef is the denormalized copy of a chat's most recent message, used for list ordering.
type MessageRef struct {
	ID        MessageID `json:"id"`
	SenderID  UserID    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Chat struct {
	ID            ChatID      `json:"id"`
	IsGroup       bool        `json:"isGroupChat"`
	Name          string      `json:"chatName,omitempty"`
	Members       []UserID    `json:"users"`
	GroupAdmin    *UserID     `json:"groupAdmin,omitempty"`
	LatestMessage *MessageRef `json:"latestMessage,omitempty"`
	Inert         bool        `json:"inert,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Message represents an immutable chat message. Only ReadBy grows after creation.
type Message struct {
	ID        MessageID `json:"id"`
	ChatID    ChatID    `json:"chat"`
	SenderID  UserID    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	ReadBy    []UserID  `json:"readBy"`
}

func NewChatID() ChatID {
	return ChatID(uuid.NewString())
}

// NewDirectChat builds the 1:1 chat between a and b. Members are stored in pair order
// so both participants resolve the same chat.
func NewDirectChat(a, b UserID, now time.Time) (Chat, error) {
	if a == "" || b == "" {
		return Chat{}, fmt.Errorf("%w: both participants are required", errors.ErrInvalidArgument)
	}
	if a == b {
		return Chat{}, fmt.Errorf("%w: a direct chat needs two distinct users", errors.ErrInvalidArgument)
	}
	first, second := Pair(a, b)
	return Chat{
		ID:        NewChatID(),
		Members:   []UserID{first, second},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NewGroupChat builds a group administered by its creator. The creator is always the first member.
func NewGroupChat(creator UserID, name string, memberIDs []UserID, now time.Time) (Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Chat{}, fmt.Errorf("%w: group name is required", errors.ErrInvalidArgument)
	}
	if creator == "" {
		return Chat{}, fmt.Errorf("%w: group creator is required", errors.ErrInvalidArgument)
	}
	members := lo.Uniq(append([]UserID{creator}, lo.Compact(memberIDs)...))
	if len(members) < MinGroupSize {
		return Chat{}, fmt.Errorf("%w: a group needs at least %d members, got %d",
			errors.ErrInvalidArgument, MinGroupSize, len(members))
	}
	return Chat{
		ID:         NewChatID(),
		IsGroup:    true,
		Name:       name,
		Members:    members,
		GroupAdmin: lo.ToPtr(creator),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Pair orders two user identities so that (a,b) and (b,a) share one key.
func Pair(a, b UserID) (UserID, UserID) {
	if a < b {
		return a, b
	}
	return b, a
}

func (c Chat) HasMember(userID UserID) bool {
	return lo.Contains(c.Members, userID)
}

func (c Chat) IsAdmin(userID UserID) bool {
	return c.GroupAdmin != nil && *c.GroupAdmin == userID
}

// LastActivity is the ordering key of the chat list: latest message, or creation when empty.
func (c Chat) LastActivity() time.Time {
	if c.LatestMessage != nil {
		return c.LatestMessage.CreatedAt
	}
	return c.CreatedAt
}

// Validate checks the structural invariants of a chat.
func (c Chat) Validate() error {
	if len(lo.Uniq(c.Members)) != len(c.Members) {
		return fmt.Errorf("%w: duplicate members", errors.ErrInvalidArgument)
	}
	if !c.IsGroup {
		if len(c.Members) != 2 || c.GroupAdmin != nil || c.Name != "" {
			return fmt.Errorf("%w: a direct chat has exactly two members and no admin", errors.ErrInvalidArgument)
		}
		return nil
	}
	if len(c.Members) == 0 {
		if !c.Inert || c.GroupAdmin != nil {
			return fmt.Errorf("%w: an empty group must be inert without admin", errors.ErrInvalidArgument)
		}
		return nil
	}
	if c.GroupAdmin == nil || !c.HasMember(*c.GroupAdmin) {
		return fmt.Errorf("%w: the group admin must be a member", errors.ErrInvalidArgument)
	}
	return nil
}

// authorize applies the group mutation rule: the admin may do anything, a member may only remove themself.
func (c Chat) authorize(actor, target UserID, selfAllowed bool) error {
	if !c.IsGroup {
		return fmt.Errorf("%w: direct chats cannot be modified", errors.ErrInvalidArgument)
	}
	if c.IsAdmin(actor) {
		return nil
	}
	if selfAllowed && actor == target && c.HasMember(actor) {
		return nil
	}
	return fmt.Errorf("%w: only the group admin can do this", errors.ErrForbidden)
}

func (c Chat) Rename(actor UserID, name string, now time.Time) (Chat, error) {
	if err := c.authorize(actor, "", false); err != nil {
		return c, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return c, fmt.Errorf("%w: group name is required", errors.ErrInvalidArgument)
	}
	c.Name = name
	c.UpdatedAt = now
	return c, nil
}

// AddMember is a no-op when userID already belongs to the group.
func (c Chat) AddMember(actor, userID UserID, now time.Time) (Chat, error) {
	if err := c.authorize(actor, userID, false); err != nil {
		return c, err
	}
	if userID == "" {
		return c, fmt.Errorf("%w: user is required", errors.ErrInvalidArgument)
	}
	if c.HasMember(userID) {
		return c, nil
	}
	c.Members = append(append([]UserID(nil), c.Members...), userID)
	c.UpdatedAt = now
	return c, nil
}

// RemoveMember drops userID from the group. When the admin leaves, the first remaining member
// takes over; when nobody is left the chat becomes inert.
func (c Chat) RemoveMember(actor, userID UserID, now time.Time) (Chat, error) {
	if err := c.authorize(actor, userID, true); err != nil {
		return c, err
	}
	if !c.HasMember(userID) {
		return c, fmt.Errorf("%w: %s", errors.ErrNotMember, userID)
	}
	c.Members = lo.Without(c.Members, userID)
	switch {
	case len(c.Members) == 0:
		c.GroupAdmin = nil
		c.Inert = true
	case c.IsAdmin(userID):
		c.GroupAdmin = lo.ToPtr(c.Members[0])
	}
	c.UpdatedAt = now
	return c, nil
}

// CanPost tells whether sender may append a message right now.
func (c Chat) CanPost(sender UserID) error {
	if c.Inert || !c.HasMember(sender) {
		return fmt.Errorf("%w: %s cannot post in %s", errors.ErrNotMember, sender, c.ID)
	}
	return nil
}

// NewMessage validates the content and stamps a message for this chat.
func (c Chat) NewMessage(sender UserID, content string, at time.Time) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, errors.ErrEmptyContent
	}
	if err := c.CanPost(sender); err != nil {
		return Message{}, err
	}
	return Message{
		ID:        uuid.New(),
		ChatID:    c.ID,
		SenderID:  sender,
		Content:   content,
		CreatedAt: at,
		ReadBy:    []UserID{},
	}, nil
}

func (m Message) Ref() *MessageRef {
	return &MessageRef{ID: m.ID, SenderID: m.SenderID, Content: m.Content, CreatedAt: m.CreatedAt}
}

// MarkRead adds reader to ReadBy. It reports false when the reader was already recorded.
func (m *Message) MarkRead(reader UserID) bool {
	if lo.Contains(m.ReadBy, reader) {
		return false
	}
	m.ReadBy = append(m.ReadBy, reader)
	return true
}
