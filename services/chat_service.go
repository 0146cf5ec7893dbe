//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"

	"marketchat/domain"
	"marketchat/domain/event"
	apperrors "marketchat/errors"
	"marketchat/moderation"
	"marketchat/repositories"
	"marketchat/search"
)

// Notifier is the push side of the hub. The service only ever needs fan-out;
// presence bookkeeping stays with the transport layer.
type Notifier interface {
	Notify(userID string, e event.DomainEvent)
	NotifyMany(userIDs []string, e event.DomainEvent)
}

// ConversationSummary is a conversation as the sidebar wants it: decorated
// with the peer and the caller's unread count.
type ConversationSummary struct {
	ID           string              `json:"id"`
	Participants []string            `json:"participants"`
	Other        string              `json:"other"`
	LastMessage  *domain.LastMessage `json:"lastMessage"`
	UpdatedAt    time.Time           `json:"updatedAt"`
	UnreadCount  int                 `json:"unreadCount"`
}

type IChatService interface {
	Start(selfID, otherID string) (ConversationSummary, error)
	ListMine(selfID string) ([]ConversationSummary, error)
	FetchMessages(selfID, convID string, skip, limit int) ([]domain.Message, error)
	Send(selfID, convID, text, image string) (domain.Message, error)
	MarkRead(selfID, convID string) error
	DeleteConversation(selfID, convID string) error
	DeleteMessage(selfID, msgID string) error
	SearchMessages(ctx context.Context, selfID, convID, query string, limit int) ([]domain.Message, error)
	Typing(selfID, convID string, stopped bool) error
}

type ChatService struct {
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	notifier      Notifier
	masker        *moderation.Masker
	index         *search.MessageIndex
	log           *slog.Logger
}

// NewChatService wires the directory, the ledger and the push layer together.
// masker and index may be nil; the core works without either.
func NewChatService(
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	notifier Notifier,
	masker *moderation.Masker,
	index *search.MessageIndex,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		notifier:      notifier,
		masker:        masker,
		index:         index,
		log:           log,
	}
}

// Start finds or creates the conversation between the caller and otherID and
// restores it to the caller's view if they had hidden it.
func (s *ChatService) Start(selfID, otherID string) (ConversationSummary, error) {
	if otherID == "" || uuid.Validate(otherID) != nil {
		return ConversationSummary{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidParticipant, otherID)
	}
	if otherID == selfID {
		return ConversationSummary{}, fmt.Errorf("%w: cannot chat with yourself", apperrors.ErrInvalidParticipant)
	}

	conv, err := s.conversations.Start(selfID, otherID)
	if err != nil {
		return ConversationSummary{}, err
	}
	return s.summarize(conv, selfID)
}

// ListMine returns the caller's visible conversations, most recently active
// first, each with their unread count.
func (s *ChatService) ListMine(selfID string) ([]ConversationSummary, error) {
	convs, err := s.conversations.ListForUser(selfID)
	if err != nil {
		return nil, err
	}
	summaries := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary, err := s.summarize(conv, selfID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *ChatService) FetchMessages(selfID, convID string, skip, limit int) ([]domain.Message, error) {
	if _, err := s.conversations.GetForMember(convID, selfID); err != nil {
		return nil, err
	}
	return s.messages.ListVisible(convID, selfID, skip, limit)
}

// Send is the pivotal transition of a thread: it creates the message, moves
// the thread's last-activity pointer, un-hides it for both sides and fans the
// event out to every connected session of both participants.
func (s *ChatService) Send(selfID, convID, text, image string) (domain.Message, error) {
	conv, err := s.conversations.GetForMember(convID, selfID)
	if err != nil {
		return domain.Message{}, err
	}

	if s.masker != nil {
		text = s.masker.Apply(text)
	}

	msg, err := s.messages.Append(convID, selfID, text, image, detectLang(text))
	if err != nil {
		return domain.Message{}, err
	}

	if s.index != nil {
		if err := s.index.Index(msg); err != nil {
			// Search is a projection; the message is already durable.
			s.log.Warn("indexing message failed", "message_id", msg.ID, "error", err)
		}
	}

	s.notifier.NotifyMany(conv.Participants, event.NewMessageEvent(msg))
	return msg, nil
}

// MarkRead marks every message of the conversation read for the caller and
// tells the other side their messages were seen.
func (s *ChatService) MarkRead(selfID, convID string) error {
	conv, err := s.conversations.GetForMember(convID, selfID)
	if err != nil {
		return err
	}
	marked, err := s.messages.MarkRead(convID, selfID)
	if err != nil {
		return err
	}
	s.log.Debug("messages marked read", "conversation_id", convID, "reader", selfID, "marked", marked)
	s.notifier.Notify(conv.Other(selfID), event.MessagesRead{ConversationID: convID})
	return nil
}

func (s *ChatService) DeleteConversation(selfID, convID string) error {
	if _, err := s.conversations.GetForMember(convID, selfID); err != nil {
		return err
	}
	return s.conversations.SoftDelete(convID, selfID)
}

func (s *ChatService) DeleteMessage(selfID, msgID string) error {
	msg, err := s.messages.SoftDelete(msgID, selfID)
	if err != nil {
		return err
	}
	conv, err := s.conversations.GetByID(msg.ConversationID)
	if err != nil {
		return err
	}
	s.notifier.NotifyMany(conv.Participants, event.MessageDeleted{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
	})
	return nil
}

// SearchMessages runs a full-text query over the caller's visible messages in
// one conversation, best matches first.
func (s *ChatService) SearchMessages(ctx context.Context, selfID, convID, query string, limit int) ([]domain.Message, error) {
	if _, err := s.conversations.GetForMember(convID, selfID); err != nil {
		return nil, err
	}
	if s.index == nil || strings.TrimSpace(query) == "" {
		return []domain.Message{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > repositories.MaxPageSize {
		limit = repositories.MaxPageSize
	}

	hits, err := s.index.Search(ctx, convID, query, limit)
	if err != nil {
		return nil, err
	}

	msgs := make([]domain.Message, 0, len(hits))
	for _, hit := range hits {
		msg, err := s.messages.GetByID(hit.MessageID)
		if err != nil {
			// Index may lag the store; a dangling hit is not an error.
			s.log.Debug("search hit without message", "message_id", hit.MessageID)
			continue
		}
		if msg.HiddenFor(selfID) {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Typing relays an ephemeral typing signal to the other participant.
func (s *ChatService) Typing(selfID, convID string, stopped bool) error {
	conv, err := s.conversations.GetForMember(convID, selfID)
	if err != nil {
		return err
	}
	other := conv.Other(selfID)
	if stopped {
		s.notifier.Notify(other, event.StopTyping{ConversationID: convID, UserID: selfID})
	} else {
		s.notifier.Notify(other, event.Typing{ConversationID: convID, UserID: selfID})
	}
	return nil
}

func (s *ChatService) summarize(conv domain.Conversation, selfID string) (ConversationSummary, error) {
	unread, err := s.messages.UnreadCount(conv.ID, selfID)
	if err != nil {
		return ConversationSummary{}, err
	}
	return ConversationSummary{
		ID:           conv.ID,
		Participants: conv.Participants,
		Other:        conv.Other(selfID),
		LastMessage:  conv.LastMessage,
		UpdatedAt:    conv.UpdatedAt,
		UnreadCount:  unread,
	}, nil
}

// detectLang tags the message with its ISO 639-1 code when detection is
// confident enough. Informational only.
func detectLang(text string) string {
	if text == "" {
		return ""
	}
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
