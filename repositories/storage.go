package repositories

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"marketchat/domain"
	apperrors "marketchat/errors"
)

// Key layout. Message keys embed a zero-padded nanosecond timestamp so that
// Badger's lexicographic iteration order is chronological order; the UUID
// suffix disambiguates two messages landing on the same nanosecond.
const (
	convItemPrefix = "conv:item:"
	convPairPrefix = "conv:pair:"
	msgItemPrefix  = "msg:item:"
	msgIDPrefix    = "msg:id:"
)

func conversationKey(convID string) []byte {
	return []byte(convItemPrefix + convID)
}

func pairKey(a, b string) []byte {
	return []byte(convPairPrefix + domain.PairKey(a, b))
}

func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d:%s", msgItemPrefix, m.ConversationID, m.CreatedAt.UnixNano(), m.ID))
}

func messageIDKey(msgID string) []byte {
	return []byte(msgIDPrefix + msgID)
}

// txnRetries bounds retry loops on write conflicts. Badger transactions are
// serializable; the loser of a race gets ErrConflict and must rerun.
const txnRetries = 5

func updateWithRetry(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < txnRetries; attempt++ {
		if err = db.Update(fn); !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func getConversation(txn *badger.Txn, convID string) (domain.Conversation, error) {
	item, err := txn.Get(conversationKey(convID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Conversation{}, apperrors.ErrNotFound
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	var conv domain.Conversation
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &conv)
	}); err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

func unmarshalConversation(val []byte, conv *domain.Conversation) error {
	return json.Unmarshal(val, conv)
}

func putConversation(txn *badger.Txn, conv domain.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	return txn.Set(conversationKey(conv.ID), data)
}

func putMessage(txn *badger.Txn, key []byte, m domain.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return txn.Set(key, data)
}

// appendUnique keeps ReadBy/DeletedBy sets monotonic without duplicates.
func appendUnique(set []string, userID string) []string {
	for _, id := range set {
		if id == userID {
			return set
		}
	}
	return append(set, userID)
}
