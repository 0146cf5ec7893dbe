package domain

import (
	"strings"
	"time"

	"github.com/samber/lo"

	apperrors "marketchat/errors"
)

// Message is one chat event inside a conversation. ReadBy and DeletedBy only
// grow: deletion is a per-user visibility flag, not data loss.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation"`
	Sender         string    `json:"sender"`
	Text           string    `json:"text"`
	Image          string    `json:"image,omitempty"`
	Lang           string    `json:"lang,omitempty"`
	ReadBy         []string  `json:"readBy"`
	DeletedBy      []string  `json:"deletedBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (m Message) SeenBy(userID string) bool {
	return lo.Contains(m.ReadBy, userID)
}

func (m Message) HiddenFor(userID string) bool {
	return lo.Contains(m.DeletedBy, userID)
}

// ValidateContent enforces the only content invariant a message has:
// non-blank text or an image, at least one of the two.
func ValidateContent(text, image string) error {
	if strings.TrimSpace(text) == "" && image == "" {
		return apperrors.ErrEmptyMessage
	}
	return nil
}
