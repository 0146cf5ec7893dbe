// Package domain contains core concepts of the messaging system.
// This file defines Conversation entities and related invariants.
// No transport, storage, or UI logic should be added here.
package domain

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// Conversation is a thread between exactly two users. It is never hard
// deleted: each participant hides it from their own view through DeletedBy.
type Conversation struct {
	ID           string       `json:"id"`
	Participants []string     `json:"participants"`
	LastMessage  *LastMessage `json:"lastMessage"`
	DeletedBy    []string     `json:"deletedBy,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// LastMessage is the sidebar preview of the most recent message.
type LastMessage struct {
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c Conversation) HasParticipant(userID string) bool {
	return lo.Contains(c.Participants, userID)
}

// Other returns the participant facing userID. Empty for a non-member.
func (c Conversation) Other(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

func (c Conversation) HiddenFor(userID string) bool {
	return lo.Contains(c.DeletedBy, userID)
}

// PairKey builds the order-independent identity of a participant pair.
// Start(a, b) and Start(b, a) must land on the same key.
func PairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}
