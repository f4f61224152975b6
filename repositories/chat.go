//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	stderrors "errors"
	"log/slog"
	"peer-chat/domain/chat"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IChatRepository interface {
	CreateOrGetDirectChat(a, b chat.UserID) (chat.Chat, bool, error)
	CreateGroupChat(creator chat.UserID, name string, memberIDs []chat.UserID) (chat.Chat, error)
	RenameChat(chatID chat.ChatID, actor chat.UserID, name string) (chat.Chat, error)
	AddMember(chatID chat.ChatID, actor, userID chat.UserID) (chat.Chat, error)
	RemoveMember(chatID chat.ChatID, actor, userID chat.UserID) (chat.Chat, error)
	GetChat(chatID chat.ChatID) (chat.Chat, error)
	ListChatsForUser(userID chat.UserID) ([]chat.Chat, error)
}

type ChatRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewChatRepository(db *badger.DB, log *slog.Logger) ChatRepository {
	return ChatRepository{db: db, log: log}
}

// CreateOrGetDirectChat returns the direct chat between a and b, creating it on first contact.
// The pair index is read and written in the same transaction as the chat itself: when both
// participants race, badger rejects the second commit with a conflict, the transaction is
// replayed and finds the chat created by the winner.
// The boolean reports whether this call created the chat.
func (r ChatRepository) CreateOrGetDirectChat(a, b chat.UserID) (chat.Chat, bool, error) {
	var result chat.Chat
	var created bool
	err := update(r.db, func(txn *badger.Txn) error {
		created = false
		candidate, err := chat.NewDirectChat(a, b, time.Now().UTC())
		if err != nil {
			return err
		}
		item, err := txn.Get(pairKey(a, b))
		switch {
		case err == nil:
			var existingID []byte
			if existingID, err = item.ValueCopy(nil); err != nil {
				return err
			}
			result, err = getChat(txn, chat.ChatID(existingID))
			return err
		case !stderrors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err = putChat(txn, candidate); err != nil {
			return err
		}
		if err = txn.Set(pairKey(a, b), []byte(candidate.ID)); err != nil {
			return err
		}
		for _, member := range candidate.Members {
			if err = txn.Set(memberKey(member, candidate.ID), nil); err != nil {
				return err
			}
		}
		result, created = candidate, true
		return nil
	})
	if err != nil {
		return chat.Chat{}, false, err
	}
	if created {
		r.log.Debug("Direct chat created", "chat_id", result.ID, "members", result.Members)
	}
	return result, created, nil
}

// CreateGroupChat persists a new group administered by creator.
func (r ChatRepository) CreateGroupChat(creator chat.UserID, name string, memberIDs []chat.UserID) (chat.Chat, error) {
	group, err := chat.NewGroupChat(creator, name, memberIDs, time.Now().UTC())
	if err != nil {
		return chat.Chat{}, err
	}
	err = update(r.db, func(txn *badger.Txn) error {
		if err := putChat(txn, group); err != nil {
			return err
		}
		for _, member := range group.Members {
			if err := txn.Set(memberKey(member, group.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return chat.Chat{}, err
	}
	r.log.Debug("Group chat created", "chat_id", group.ID, "name", group.Name, "size", len(group.Members))
	return group, nil
}

func (r ChatRepository) RenameChat(chatID chat.ChatID, actor chat.UserID, name string) (chat.Chat, error) {
	return r.mutate(chatID, func(c chat.Chat, now time.Time) (chat.Chat, error) {
		return c.Rename(actor, name, now)
	})
}

func (r ChatRepository) AddMember(chatID chat.ChatID, actor, userID chat.UserID) (chat.Chat, error) {
	return r.mutate(chatID, func(c chat.Chat, now time.Time) (chat.Chat, error) {
		return c.AddMember(actor, userID, now)
	})
}

func (r ChatRepository) RemoveMember(chatID chat.ChatID, actor, userID chat.UserID) (chat.Chat, error) {
	return r.mutate(chatID, func(c chat.Chat, now time.Time) (chat.Chat, error) {
		return c.RemoveMember(actor, userID, now)
	})
}

// mutate loads a chat, applies a domain rule and rewrites the chat together with
// the membership index in a single transaction.
func (r ChatRepository) mutate(chatID chat.ChatID, apply func(chat.Chat, time.Time) (chat.Chat, error)) (chat.Chat, error) {
	var result chat.Chat
	err := update(r.db, func(txn *badger.Txn) error {
		before, err := getChat(txn, chatID)
		if err != nil {
			return err
		}
		after, err := apply(before, time.Now().UTC())
		if err != nil {
			return err
		}
		if err = after.Validate(); err != nil {
			return err
		}
		if err = putChat(txn, after); err != nil {
			return err
		}
		for _, gone := range before.Members {
			if !after.HasMember(gone) {
				if err = txn.Delete(memberKey(gone, chatID)); err != nil {
					return err
				}
			}
		}
		for _, joined := range after.Members {
			if !before.HasMember(joined) {
				if err = txn.Set(memberKey(joined, chatID), nil); err != nil {
					return err
				}
			}
		}
		result = after
		return nil
	})
	return result, err
}

func (r ChatRepository) GetChat(chatID chat.ChatID) (chat.Chat, error) {
	var result chat.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		result, err = getChat(txn, chatID)
		return err
	})
	return result, err
}

// ListChatsForUser returns the chats userID currently belongs to, most recently active first.
func (r ChatRepository) ListChatsForUser(userID chat.UserID) ([]chat.Chat, error) {
	var chats []chat.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := memberScanPrefix(userID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		var ids []chat.ChatID
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := chatFromMemberKey(it.Item().KeyCopy(nil), prefix)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		for _, id := range ids {
			c, err := getChat(txn, id)
			if err != nil {
				return err
			}
			chats = append(chats, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(chats, func(a, b chat.Chat) int {
		return b.LastActivity().Compare(a.LastActivity())
	})
	return chats, nil
}
