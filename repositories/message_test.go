package repositories

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "marketchat/errors"
)

func Test_Append_Requires_Text_Or_Image(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	convRepo := NewConversationRepository(db, slog.Default())
	msgRepo := NewMessageRepository(db, slog.Default())

	conv, err := convRepo.Start("alice", "bob")
	req.NoError(err)

	_, err = msgRepo.Append(conv.ID, "alice", "   ", "", "")
	req.ErrorIs(err, apperrors.ErrEmptyMessage)

	msg, err := msgRepo.Append(conv.ID, "alice", "", "http://cdn/img.webp", "")
	req.NoError(err)
	req.Empty(msg.Text)
	req.Equal("http://cdn/img.webp", msg.Image)
	req.Equal([]string{"alice"}, msg.ReadBy)
}

func Test_Append_Requires_Membership(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	convRepo := NewConversationRepository(db, slog.Default())
	msgRepo := NewMessageRepository(db, slog.Default())

	_, err := msgRepo.Append("missing", "alice", "hello", "", "")
	req.ErrorIs(err, apperrors.ErrNotFound)

	conv, err := convRepo.Start("alice", "bob")
	req.NoError(err)
	_, err = msgRepo.Append(conv.ID, "mallory", "hello", "", "")
	req.ErrorIs(err, apperrors.ErrNotAMember)
}

func Test_Append_Moves_Thread_And_Unhides_Both_Sides(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	convRepo := NewConversationRepository(db, slog.Default())
	msgRepo := NewMessageRepository(db, slog.Default())

	conv, err := convRepo.Start("alice", "bob")
	req.NoError(err)
	req.NoError(convRepo.SoftDelete(conv.ID, "alice"))
	req.NoError(convRepo.SoftDelete(conv.ID, "bob"))

	msg, err := msgRepo.Append(conv.ID, "alice", "anyone home?", "", "")
	req.NoError(err)

	updated, err := convRepo.GetByID(conv.ID)
	req.NoError(err)
	req.NotNil(updated.LastMessage)
	req.Equal("anyone home?", updated.LastMessage.Text)
	req.Equal(msg.CreatedAt, updated.UpdatedAt)
	req.Empty(updated.DeletedBy)

	// Both listings see the thread again.
	for _, user := range []string{"alice", "bob"} {
		convs, err := convRepo.ListForUser(user)
		req.NoError(err)
		req.Len(convs, 1)
	}
}

func Test_UnreadCount_And_MarkRead(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	convRepo := NewConversationRepository(db, slog.Default())
	msgRepo := NewMessageRepository(db, slog.Default())

	conv, err := convRepo.Start("alice", "bob")
	req.NoError(err)

	_, err = msgRepo.Append(conv.ID, "alice", "hola", "", "")
	req.NoError(err)

	bobUnread, err := msgRepo.UnreadCount(conv.ID, "bob")
	req.NoError(err)
	req.Equal(1, bobUnread)

	aliceUnread, err := msgRepo.UnreadCount(conv.ID, "alice")
	req.NoError(err)
	req.Equal(0, aliceUnread)

	marked, err := msgRepo.MarkRead(conv.ID, "bob")
	req.NoError(err)
	req.Equal(1, marked)

	bobUnread, err = msgRepo.UnreadCount(conv.ID, "bob")
	req.NoError(err)
	req.Equal(0, bobUnread)

	// Marking again is a no-op.
	marked, err = msgRepo.MarkRead(conv.ID, "bob")
	req.NoError(err)
	req.Equal(0, marked)

	// A new message from the other side starts the count over.
	_, err = msgRepo.Append(conv.ID, "alice", "sigues ahi?", "", "")
	req.NoError(err)
	bobUnread, err = msgRepo.UnreadCount(conv.ID, "bob")
	req.NoError(err)
	req.Equal(1, bobUnread)
}

func Test_ListVisible_Paginates_And_Clamps(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	convRepo := NewConversationRepository(db, slog.Default())
	msgRepo := NewMessageRepository(db, slog.Default())

	conv, err := convRepo.Start("alice", "bob")
	req.NoError(err)
	for i := 0; i < 120; i++ {
		_, err := msgRepo.Append(conv.ID, "alice", fmt.Sprintf("m-%03d", i), "", "")
		req.NoError(err)
	}

	// Requested limit far above the cap: exactly 100 come back, oldest first.
	msgs, err := msgRepo.ListVisible(conv.ID, "bob", 0, 500)
	req.NoError(err)
	req.Len(msgs, 100)
	req.Equal("m-000", msgs[0].Text)
	for i := 1; i < len(msgs); i++ {
		req.False(msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
	}

	rest, err := msgRepo.ListVisible(conv.ID, "bob", 100, 500)
	req.NoError(err)
	req.Len(rest, 20)

	// Zero limit falls back to the default page size.
	page, err := msgRepo.ListVisible(conv.ID, "bob", 0, 0)
	req.NoError(err)
	req.Len(page, DefaultPageSize)
}

func Test_SoftDelete_Message_Is_Sender_Only_And_One_Sided(t *testing.T) {
	req := require.New(t)
	db := newTestDB(t)
	convRepo := NewConversationRepository(db, slog.Default())
	msgRepo := NewMessageRepository(db, slog.Default())

	conv, err := convRepo.Start("alice", "bob")
	req.NoError(err)
	msg, err := msgRepo.Append(conv.ID, "alice", "oops", "", "")
	req.NoError(err)

	_, err = msgRepo.SoftDelete(msg.ID, "bob")
	req.ErrorIs(err, apperrors.ErrNotFound)
	_, err = msgRepo.SoftDelete("missing", "alice")
	req.ErrorIs(err, apperrors.ErrNotFound)

	deleted, err := msgRepo.SoftDelete(msg.ID, "alice")
	req.NoError(err)
	req.Equal(conv.ID, deleted.ConversationID)

	aliceView, err := msgRepo.ListVisible(conv.ID, "alice", 0, 0)
	req.NoError(err)
	req.Empty(aliceView)

	bobView, err := msgRepo.ListVisible(conv.ID, "bob", 0, 0)
	req.NoError(err)
	req.Len(bobView, 1)

	// Retracting your own message does not touch the other side's unread
	// count; read state and visibility stay independent.
	bobUnread, err := msgRepo.UnreadCount(conv.ID, "bob")
	req.NoError(err)
	req.Equal(1, bobUnread)
}
