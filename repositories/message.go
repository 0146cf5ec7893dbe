//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"marketchat/domain"
	apperrors "marketchat/errors"
)

// Pagination bounds for ListVisible. The cap applies regardless of what the
// caller asked for.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

type IMessageRepository interface {
	Append(convID, senderID, text, image, lang string) (domain.Message, error)
	ListVisible(convID, userID string, skip, limit int) ([]domain.Message, error)
	MarkRead(convID, userID string) (int, error)
	UnreadCount(convID, userID string) (int, error)
	SoftDelete(msgID, requesterID string) (domain.Message, error)
	GetByID(msgID string) (domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// Append creates a message and, in the same transaction, points the owning
// conversation at it and clears the whole DeletedBy set: a new message
// un-hides the thread for both sides, sender included.
func (r MessageRepository) Append(convID, senderID, text, image, lang string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if err := domain.ValidateContent(text, image); err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		Sender:         senderID,
		Text:           text,
		Image:          image,
		Lang:           lang,
		ReadBy:         []string{senderID}, // the sender has trivially seen it
		CreatedAt:      time.Now().UTC(),
	}

	err := updateWithRetry(r.db, func(txn *badger.Txn) error {
		conv, err := getConversation(txn, convID)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(senderID) {
			return apperrors.ErrNotAMember
		}

		key := messageKey(msg)
		if err := putMessage(txn, key, msg); err != nil {
			return err
		}
		if err := txn.Set(messageIDKey(msg.ID), key); err != nil {
			return err
		}

		conv.LastMessage = &domain.LastMessage{
			Text:      msg.Text,
			Image:     msg.Image,
			CreatedAt: msg.CreatedAt,
		}
		conv.UpdatedAt = msg.CreatedAt
		conv.DeletedBy = nil
		return putConversation(txn, conv)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// ListVisible returns the messages of a conversation that userID has not
// hidden, oldest first. Skip and limit apply to the visible sequence.
func (r MessageRepository) ListVisible(convID, userID string, skip, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if skip < 0 {
		skip = 0
	}

	var msgs []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(msgItemPrefix + convID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		seen := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg domain.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			if msg.HiddenFor(userID) {
				continue
			}
			if seen < skip {
				seen++
				continue
			}
			msgs = append(msgs, msg)
			if len(msgs) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkRead adds userID to ReadBy on every message of the conversation they
// did not author and have not read yet. Hidden messages are still eligible:
// read state is independent of visibility, so un-hiding a thread later does
// not resurrect stale unread badges. Returns how many messages were marked.
func (r MessageRepository) MarkRead(convID, userID string) (int, error) {
	marked := 0
	err := updateWithRetry(r.db, func(txn *badger.Txn) error {
		marked = 0
		type update struct {
			key []byte
			msg domain.Message
		}
		var updates []update

		// Collect first, write after the iterator is closed: Badger does not
		// like writes racing an open iterator in the same transaction.
		prefix := []byte(msgItemPrefix + convID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg domain.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				it.Close()
				return err
			}
			if msg.Sender == userID || msg.SeenBy(userID) {
				continue
			}
			msg.ReadBy = appendUnique(msg.ReadBy, userID)
			updates = append(updates, update{key: it.Item().KeyCopy(nil), msg: msg})
		}
		it.Close()

		for _, u := range updates {
			if err := putMessage(txn, u.key, u.msg); err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, nil
}

// UnreadCount counts messages userID has neither sent, read, nor hidden.
func (r MessageRepository) UnreadCount(convID, userID string) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(msgItemPrefix + convID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var msg domain.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			if msg.Sender != userID && !msg.SeenBy(userID) && !msg.HiddenFor(userID) {
				count++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SoftDelete hides a message from its author's own view. Only the original
// sender may retract a message, and only from their side: anyone else gets
// ErrNotFound, the other participant keeps seeing it. Idempotent.
func (r MessageRepository) SoftDelete(msgID, requesterID string) (domain.Message, error) {
	var msg domain.Message
	err := updateWithRetry(r.db, func(txn *badger.Txn) error {
		key, err := resolveMessageKey(txn, msgID)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &msg)
		}); err != nil {
			return err
		}
		if msg.Sender != requesterID {
			return apperrors.ErrNotFound
		}
		msg.DeletedBy = appendUnique(msg.DeletedBy, requesterID)
		return putMessage(txn, key, msg)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (r MessageRepository) GetByID(msgID string) (domain.Message, error) {
	var msg domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		key, err := resolveMessageKey(txn, msgID)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &msg)
		})
	})
	return msg, err
}

// resolveMessageKey follows the msg:id index to the primary, time-ordered key.
func resolveMessageKey(txn *badger.Txn, msgID string) ([]byte, error) {
	item, err := txn.Get(messageIDKey(msgID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}
