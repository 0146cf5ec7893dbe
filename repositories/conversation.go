//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"marketchat/domain"
	apperrors "marketchat/errors"
)

type IConversationRepository interface {
	Start(selfID, otherID string) (domain.Conversation, error)
	GetByID(convID string) (domain.Conversation, error)
	GetForMember(convID, userID string) (domain.Conversation, error)
	ListForUser(userID string) ([]domain.Conversation, error)
	SoftDelete(convID, userID string) error
}

type ConversationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewConversationRepository(db *badger.DB, log *slog.Logger) ConversationRepository {
	return ConversationRepository{db: db, log: log}
}

// Start finds the unique conversation for the unordered pair {selfID, otherID}
// or creates it. An existing conversation is restored to selfID's view by
// dropping them from DeletedBy. Uniqueness is enforced by the pair key row,
// not by convention: concurrent creations conflict and fall back to a lookup.
func (r ConversationRepository) Start(selfID, otherID string) (domain.Conversation, error) {
	key := pairKey(selfID, otherID)
	var conv domain.Conversation

	// Two racing Start calls for the same pair conflict at commit time; the
	// loser retries and finds the winner's conversation.
	for attempt := 0; attempt < txnRetries; attempt++ {
		err := r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			switch {
			case err == nil:
				var convID string
				if err := item.Value(func(val []byte) error {
					convID = string(val)
					return nil
				}); err != nil {
					return err
				}
				existing, err := getConversation(txn, convID)
				if err != nil {
					return err
				}
				existing.DeletedBy = lo.Without(existing.DeletedBy, selfID)
				conv = existing
				return putConversation(txn, existing)
			case errors.Is(err, badger.ErrKeyNotFound):
				now := time.Now().UTC()
				created := domain.Conversation{
					ID:           uuid.NewString(),
					Participants: []string{selfID, otherID},
					CreatedAt:    now,
					UpdatedAt:    now,
				}
				if err := txn.Set(key, []byte(created.ID)); err != nil {
					return err
				}
				conv = created
				return putConversation(txn, created)
			default:
				return err
			}
		})
		if err == nil {
			return conv, nil
		}
		if !errors.Is(err, badger.ErrConflict) {
			return domain.Conversation{}, err
		}
		r.log.Debug("conversation create conflict, retrying", "pair", string(key))
	}
	return domain.Conversation{}, fmt.Errorf("conversation create kept conflicting: %w", badger.ErrConflict)
}

func (r ConversationRepository) GetByID(convID string) (domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		conv, err = getConversation(txn, convID)
		return err
	})
	return conv, err
}

// GetForMember resolves a conversation and checks that userID belongs to it.
// It deliberately ignores DeletedBy: hiding a thread removes it from listings
// only, an existing link or notification must still resolve.
func (r ConversationRepository) GetForMember(convID, userID string) (domain.Conversation, error) {
	conv, err := r.GetByID(convID)
	if err != nil {
		return domain.Conversation{}, err
	}
	if !conv.HasParticipant(userID) {
		return domain.Conversation{}, apperrors.ErrNotAMember
	}
	return conv, nil
}

// ListForUser returns the conversations userID participates in and has not
// hidden, most recently active first.
func (r ConversationRepository) ListForUser(userID string) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(convItemPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var conv domain.Conversation
			if err := it.Item().Value(func(val []byte) error {
				return unmarshalConversation(val, &conv)
			}); err != nil {
				return err
			}
			if conv.HasParticipant(userID) && !conv.HiddenFor(userID) {
				convs = append(convs, conv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

// SoftDelete hides the conversation from userID's listings. Idempotent.
func (r ConversationRepository) SoftDelete(convID, userID string) error {
	return updateWithRetry(r.db, func(txn *badger.Txn) error {
		conv, err := getConversation(txn, convID)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(userID) {
			return apperrors.ErrNotAMember
		}
		conv.DeletedBy = appendUnique(conv.DeletedBy, userID)
		return putConversation(txn, conv)
	})
}
