// Package event defines the real-time events pushed to connected sessions.
// Events are a best-effort optimization over the REST read path: losing one
// never loses data, the store remains the source of truth.
package event

import (
	"time"

	"marketchat/domain"
)

type DomainEvent interface {
	Name() string
}

// MessageView is the wire shape of a message inside an event payload.
// Read and delete sets stay server-side.
type MessageView struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation"`
	Sender         string    `json:"sender"`
	Text           string    `json:"text"`
	Image          string    `json:"image,omitempty"`
	Lang           string    `json:"lang,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type NewMessage struct {
	MessageView
}

func (NewMessage) Name() string { return "new_message" }

func NewMessageEvent(m domain.Message) NewMessage {
	return NewMessage{MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         m.Sender,
		Text:           m.Text,
		Image:          m.Image,
		Lang:           m.Lang,
		CreatedAt:      m.CreatedAt,
	}}
}

type MessagesRead struct {
	ConversationID string `json:"conversationId"`
}

func (MessagesRead) Name() string { return "messages_read" }

type MessageDeleted struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

func (MessageDeleted) Name() string { return "message_deleted" }

// Typing and StopTyping are ephemeral: never persisted, no delivery guarantee.

type Typing struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

func (Typing) Name() string { return "typing" }

type StopTyping struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

func (StopTyping) Name() string { return "stop_typing" }
