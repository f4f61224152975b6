package repositories

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"peer-chat/domain/chat"
	"peer-chat/errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Key layout:
//
//	chat:{chat_id}                         -> diskChat
//	pair:{user_lo}:{user_hi}               -> chat_id of the direct chat between two users
//	member:{user_id}:{chat_id}             -> empty, index of current memberships
//	msg:{chat_id}:{timestamp_padded}:{id}  -> diskMessage
//	msgid:{message_id}                     -> msg key, used to resolve read receipts
//
// Identifiers followed by a separator go through keyPart, so they never contain ':'.
const (
	chatPrefix      = "chat:"
	pairPrefix      = "pair:"
	memberPrefix    = "member:"
	messagePrefix   = "msg:"
	messageIDPrefix = "msgid:"
)

// maxConflictRetries bounds how many times a transaction is replayed after badger
// detected a concurrent write on a key it read.
const maxConflictRetries = 20

func chatKey(id chat.ChatID) []byte {
	return []byte(chatPrefix + string(id))
}

// keyPart escapes an identifier for use between key separators. User IDs come from
// tokens and may contain ':'; QueryEscape is reversible so distinct IDs stay distinct.
func keyPart[T ~string](id T) string {
	return url.QueryEscape(string(id))
}

func pairKey(a, b chat.UserID) []byte {
	first, second := chat.Pair(a, b)
	return []byte(fmt.Sprintf("%s%s:%s", pairPrefix, keyPart(first), keyPart(second)))
}

func memberKey(userID chat.UserID, chatID chat.ChatID) []byte {
	return []byte(fmt.Sprintf("%s%s", memberScanPrefix(userID), keyPart(chatID)))
}

func memberScanPrefix(userID chat.UserID) []byte {
	return []byte(fmt.Sprintf("%s%s:", memberPrefix, keyPart(userID)))
}

// chatFromMemberKey is the inverse of memberKey for the chat part.
func chatFromMemberKey(key, prefix []byte) (chat.ChatID, error) {
	id, err := url.QueryUnescape(string(key[len(prefix):]))
	if err != nil {
		return "", fmt.Errorf("malformed member key %q: %w", key, err)
	}
	return chat.ChatID(id), nil
}

func messageScanPrefix(chatID chat.ChatID) string {
	return fmt.Sprintf("%s%s:", messagePrefix, keyPart(chatID))
}

// messageKey keeps messages of a chat in chronological order thanks to the
// 19-digit zero padding; the ID breaks ties between identical timestamps.
func messageKey(chatID chat.ChatID, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", messageScanPrefix(chatID), at.UnixNano(), id))
}

func messageIDKey(id uuid.UUID) []byte {
	return []byte(messageIDPrefix + id.String())
}

type diskMessageRef struct {
	ID        string
	SenderID  string
	Content   string
	CreatedAt int64
}

type diskChat struct {
	ID            string
	IsGroup       bool
	Name          string
	Members       []string
	GroupAdmin    string
	LatestMessage *diskMessageRef
	Inert         bool
	CreatedAt     int64
	UpdatedAt     int64
}

type diskMessage struct {
	ID        string
	ChatID    string
	SenderID  string
	Content   string
	CreatedAt int64
	ReadBy    []string
}

func fromChat(c chat.Chat) diskChat {
	d := diskChat{
		ID:        string(c.ID),
		IsGroup:   c.IsGroup,
		Name:      c.Name,
		Members:   lo.Map(c.Members, func(u chat.UserID, _ int) string { return string(u) }),
		Inert:     c.Inert,
		CreatedAt: c.CreatedAt.UnixNano(),
		UpdatedAt: c.UpdatedAt.UnixNano(),
	}
	if c.GroupAdmin != nil {
		d.GroupAdmin = string(*c.GroupAdmin)
	}
	if ref := c.LatestMessage; ref != nil {
		d.LatestMessage = &diskMessageRef{
			ID:        ref.ID.String(),
			SenderID:  string(ref.SenderID),
			Content:   ref.Content,
			CreatedAt: ref.CreatedAt.UnixNano(),
		}
	}
	return d
}

func toChat(d diskChat) (chat.Chat, error) {
	c := chat.Chat{
		ID:        chat.ChatID(d.ID),
		IsGroup:   d.IsGroup,
		Name:      d.Name,
		Members:   lo.Map(d.Members, func(u string, _ int) chat.UserID { return chat.UserID(u) }),
		Inert:     d.Inert,
		CreatedAt: time.Unix(0, d.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, d.UpdatedAt).UTC(),
	}
	if d.GroupAdmin != "" {
		c.GroupAdmin = lo.ToPtr(chat.UserID(d.GroupAdmin))
	}
	if ref := d.LatestMessage; ref != nil {
		id, err := uuid.Parse(ref.ID)
		if err != nil {
			return chat.Chat{}, err
		}
		c.LatestMessage = &chat.MessageRef{
			ID:        id,
			SenderID:  chat.UserID(ref.SenderID),
			Content:   ref.Content,
			CreatedAt: time.Unix(0, ref.CreatedAt).UTC(),
		}
	}
	return c, nil
}

func fromMessage(m chat.Message) diskMessage {
	return diskMessage{
		ID:        m.ID.String(),
		ChatID:    string(m.ChatID),
		SenderID:  string(m.SenderID),
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UnixNano(),
		ReadBy:    lo.Map(m.ReadBy, func(u chat.UserID, _ int) string { return string(u) }),
	}
}

func toMessage(d diskMessage) (chat.Message, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{
		ID:        id,
		ChatID:    chat.ChatID(d.ChatID),
		SenderID:  chat.UserID(d.SenderID),
		Content:   d.Content,
		CreatedAt: time.Unix(0, d.CreatedAt).UTC(),
		ReadBy:    lo.Map(d.ReadBy, func(u string, _ int) chat.UserID { return chat.UserID(u) }),
	}, nil
}

func getChat(txn *badger.Txn, id chat.ChatID) (chat.Chat, error) {
	item, err := txn.Get(chatKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Chat{}, fmt.Errorf("%w: chat %s", errors.ErrNotFound, id)
	}
	if err != nil {
		return chat.Chat{}, err
	}
	var d diskChat
	if err = item.Value(func(val []byte) error {
		return unmarshal(val, &d)
	}); err != nil {
		return chat.Chat{}, err
	}
	return toChat(d)
}

func putChat(txn *badger.Txn, c chat.Chat) error {
	bytes, err := marshal(fromChat(c))
	if err != nil {
		return err
	}
	return txn.Set(chatKey(c.ID), bytes)
}

func getMessage(txn *badger.Txn, key []byte) (chat.Message, error) {
	item, err := txn.Get(key)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Message{}, fmt.Errorf("%w: message", errors.ErrNotFound)
	}
	if err != nil {
		return chat.Message{}, err
	}
	var d diskMessage
	if err = item.Value(func(val []byte) error {
		return unmarshal(val, &d)
	}); err != nil {
		return chat.Message{}, err
	}
	return toMessage(d)
}

func putMessage(txn *badger.Txn, key []byte, m chat.Message) error {
	bytes, err := marshal(fromMessage(m))
	if err != nil {
		return err
	}
	return txn.Set(key, bytes)
}

// update runs fn in a read-write transaction and replays it when badger reports
// a conflict with a concurrent transaction. Any other error is returned as is.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond

	return backoff.Retry(func() error {
		err := db.Update(fn)
		if err == nil || stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithMaxRetries(b, maxConflictRetries))
}
