//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"fmt"
	"iter"
	"log/slog"
	"peer-chat/domain/chat"
	"peer-chat/errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IMessageRepository interface {
	AppendMessage(chatID chat.ChatID, sender chat.UserID, content string) (chat.Message, error)
	ListMessages(chatID chat.ChatID) iter.Seq2[chat.Message, error]
	GetMessages(chatID chat.ChatID, cursor *string) ([]chat.Message, *string, error)
	GetMessage(chatID chat.ChatID, messageID chat.MessageID) (chat.Message, error)
	MarkRead(chatID chat.ChatID, messageID chat.MessageID, reader chat.UserID) (chat.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	now           func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages, now: time.Now}
}

var errStopIteration = stderrors.New("iteration stopped by consumer")

// AppendMessage validates and persists a message, then points the chat's latestMessage at it,
// both in one transaction. CreatedAt is forced strictly after the chat's previous message so
// that per-chat ordering never depends on the wall clock going forward.
func (m MessageRepository) AppendMessage(chatID chat.ChatID, sender chat.UserID, content string) (chat.Message, error) {
	var result chat.Message
	err := update(m.db, func(txn *badger.Txn) error {
		c, err := getChat(txn, chatID)
		if err != nil {
			return err
		}
		at := m.now().UTC()
		if c.LatestMessage != nil && !at.After(c.LatestMessage.CreatedAt) {
			at = c.LatestMessage.CreatedAt.Add(time.Nanosecond)
		}
		msg, err := c.NewMessage(sender, content, at)
		if err != nil {
			return err
		}
		key := messageKey(chatID, msg.CreatedAt, msg.ID)
		if err = putMessage(txn, key, msg); err != nil {
			return err
		}
		if err = txn.Set(messageIDKey(msg.ID), key); err != nil {
			return err
		}
		c.LatestMessage = msg.Ref()
		if err = putChat(txn, c); err != nil {
			return err
		}
		result = msg
		return nil
	})
	return result, err
}

// ListMessages yields every message of a chat, oldest first.
// Each range over the returned sequence opens a fresh read transaction, so it can be restarted.
func (m MessageRepository) ListMessages(chatID chat.ChatID) iter.Seq2[chat.Message, error] {
	return func(yield func(chat.Message, error) bool) {
		err := m.db.View(func(txn *badger.Txn) error {
			prefix := []byte(messageScanPrefix(chatID))
			options := badger.DefaultIteratorOptions
			options.Prefix = prefix
			it := txn.NewIterator(options)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				var d diskMessage
				if err := it.Item().Value(func(val []byte) error {
					return unmarshal(val, &d)
				}); err != nil {
					return err
				}
				msg, err := toMessage(d)
				if err != nil {
					return err
				}
				if !yield(msg, nil) {
					return errStopIteration
				}
			}
			return nil
		})
		if err != nil && !stderrors.Is(err, errStopIteration) {
			yield(chat.Message{}, err)
		}
	}
}

// GetMessages retrieves one page of a chat, walking backwards from the cursor.
// Without cursor the newest page is returned. Messages come back oldest first and the
// returned cursor is nil once the beginning of the chat has been reached.
func (m MessageRepository) GetMessages(chatID chat.ChatID, cursor *string) ([]chat.Message, *string, error) {
	var messages []chat.Message
	var nextCursor *string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := messageScanPrefix(chatID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Highest possible timestamp, then walk back.
			seekKey = append([]byte(prefixStr), []byte("9999999999999999999")...)
		default:
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		var lastKey string
		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				next := lastKey
				nextCursor = &next
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			var d diskMessage
			if err := item.Value(func(val []byte) error {
				return unmarshal(val, &d)
			}); err != nil {
				return err
			}
			msg, err := toMessage(d)
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	slices.Reverse(messages)
	return messages, nextCursor, nil
}

// GetMessage resolves a single message through the id index.
func (m MessageRepository) GetMessage(chatID chat.ChatID, messageID chat.MessageID) (chat.Message, error) {
	var result chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		result, err = lookupMessage(txn, chatID, messageID)
		return err
	})
	return result, err
}

// MarkRead records that reader has seen the message. Receipts only accumulate.
func (m MessageRepository) MarkRead(chatID chat.ChatID, messageID chat.MessageID, reader chat.UserID) (chat.Message, error) {
	var result chat.Message
	err := update(m.db, func(txn *badger.Txn) error {
		c, err := getChat(txn, chatID)
		if err != nil {
			return err
		}
		if !c.HasMember(reader) {
			return fmt.Errorf("%w: %s", errors.ErrNotMember, reader)
		}
		msg, err := lookupMessage(txn, chatID, messageID)
		if err != nil {
			return err
		}
		if msg.MarkRead(reader) {
			if err = putMessage(txn, messageKey(chatID, msg.CreatedAt, msg.ID), msg); err != nil {
				return err
			}
		}
		result = msg
		return nil
	})
	return result, err
}

func lookupMessage(txn *badger.Txn, chatID chat.ChatID, messageID chat.MessageID) (chat.Message, error) {
	idx, err := txn.Get(messageIDKey(messageID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Message{}, fmt.Errorf("%w: message %s", errors.ErrNotFound, messageID)
	}
	if err != nil {
		return chat.Message{}, err
	}
	key, err := idx.ValueCopy(nil)
	if err != nil {
		return chat.Message{}, err
	}
	msg, err := getMessage(txn, key)
	if err != nil {
		return chat.Message{}, err
	}
	if msg.ChatID != chatID {
		return chat.Message{}, fmt.Errorf("%w: message %s in chat %s", errors.ErrNotFound, messageID, chatID)
	}
	return msg, nil
}
