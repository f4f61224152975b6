package chat

type Command interface {
	Chat() ChatID
}

// PostMessageCommand carries, in Origin, the sender's event channel connection when known
// so that the cross-device echo skips it.
type PostMessageCommand struct {
	ChatID   ChatID
	SenderID UserID
	Content  string
	Origin   string
}

func (p PostMessageCommand) Chat() ChatID {
	return p.ChatID
}

type GetMessageCommand struct {
	ChatID ChatID
	UserID UserID
	Cursor *string
}

func (p GetMessageCommand) Chat() ChatID {
	return p.ChatID
}

type CreateGroupCommand struct {
	Creator UserID
	Name    string
	Members []UserID
}

// MembershipCommand covers rename, add and remove. Target is empty for a rename.
type MembershipCommand struct {
	ChatID ChatID
	Actor  UserID
	Target UserID
	Name   string
}

func (p MembershipCommand) Chat() ChatID {
	return p.ChatID
}

type MarkReadCommand struct {
	ChatID    ChatID
	MessageID MessageID
	Reader    UserID
}

func (p MarkReadCommand) Chat() ChatID {
	return p.ChatID
}
