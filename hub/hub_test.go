package hub

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"marketchat/domain/event"
)

// recordingSession collects delivered events; a stand-in for a websocket.
type recordingSession struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSession) Deliver(e event.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSession) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func Test_Notify_Reaches_Every_Session_Of_The_User(t *testing.T) {
	req := require.New(t)
	h := NewHub(slog.Default())

	phone, laptop, stranger := &recordingSession{}, &recordingSession{}, &recordingSession{}
	h.Register("alice", phone)
	h.Register("alice", laptop)
	h.Register("bob", stranger)

	h.Notify("alice", event.MessagesRead{ConversationID: "c1"})

	req.Equal(1, phone.count())
	req.Equal(1, laptop.count())
	req.Zero(stranger.count())
}

func Test_Notify_Without_Sessions_Is_Silently_Dropped(t *testing.T) {
	h := NewHub(slog.Default())
	// Nobody connected: must not panic, must not queue.
	h.Notify("ghost", event.MessagesRead{ConversationID: "c1"})
	require.Zero(t, h.SessionCount("ghost"))
}

func Test_Unregister_Stops_Delivery(t *testing.T) {
	req := require.New(t)
	h := NewHub(slog.Default())

	s := &recordingSession{}
	h.Register("alice", s)
	req.Equal(1, h.SessionCount("alice"))

	h.Unregister("alice", s)
	req.Zero(h.SessionCount("alice"))

	h.Notify("alice", event.MessagesRead{ConversationID: "c1"})
	req.Zero(s.count())

	// Unregistering twice is harmless.
	h.Unregister("alice", s)
}

func Test_NotifyMany_Fans_Out_To_Participants(t *testing.T) {
	req := require.New(t)
	h := NewHub(slog.Default())

	alice, bob := &recordingSession{}, &recordingSession{}
	h.Register("alice", alice)
	h.Register("bob", bob)

	h.NotifyMany([]string{"alice", "bob"}, event.MessageDeleted{MessageID: "m1", ConversationID: "c1"})

	req.Equal(1, alice.count())
	req.Equal(1, bob.count())
}

func Test_Concurrent_Connect_Disconnect_Notify(t *testing.T) {
	h := NewHub(slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%d", n%8)
			s := &recordingSession{}
			h.Register(userID, s)
			h.Notify(userID, event.MessagesRead{ConversationID: "c1"})
			h.Unregister(userID, s)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		require.Zero(t, h.SessionCount(fmt.Sprintf("user-%d", i)))
	}
}
