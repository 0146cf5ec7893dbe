// Package hub maps authenticated users to their connected real-time sessions
// and fans events out to them. Delivery is best-effort and at-most-once per
// session: the REST read path is the source of truth, the hub is only the
// live update layer on top of it.
package hub

import (
	"hash/fnv"
	"log/slog"
	"sync"

	"marketchat/domain/event"
)

// Session is one connected real-time channel of a single user. A user may
// hold several at once (devices, tabs). Deliver must not block: a session
// that cannot keep up loses the event.
type Session interface {
	Deliver(e event.DomainEvent)
}

// shardCount spreads the presence map over independent locks so that
// connect/disconnect storms on unrelated users do not contend.
const shardCount = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[string]map[Session]struct{}
}

type Hub struct {
	shards [shardCount]*shard
	log    *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	h := &Hub{log: log}
	for i := range h.shards {
		h.shards[i] = &shard{sessions: make(map[string]map[Session]struct{})}
	}
	return h
}

func (h *Hub) shardFor(userID string) *shard {
	f := fnv.New32a()
	f.Write([]byte(userID))
	return h.shards[f.Sum32()%shardCount]
}

// Register adds a session to the user's set. This and Unregister are the only
// mutation points of the presence map.
func (h *Hub) Register(userID string, s Session) {
	sh := h.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.sessions[userID] == nil {
		sh.sessions[userID] = make(map[Session]struct{})
	}
	sh.sessions[userID][s] = struct{}{}
}

// Unregister removes a session on disconnect. A user with no sessions left is
// dropped from the map entirely.
func (h *Hub) Unregister(userID string, s Session) {
	sh := h.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	set, ok := sh.sessions[userID]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(sh.sessions, userID)
	}
}

// SessionCount reports how many sessions a user currently holds.
func (h *Hub) SessionCount(userID string) int {
	sh := h.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.sessions[userID])
}

// Notify delivers the event to every currently connected session of userID.
// A user with no sessions simply misses it: no queuing, no error.
func (h *Hub) Notify(userID string, e event.DomainEvent) {
	sh := h.shardFor(userID)
	sh.mu.RLock()
	targets := make([]Session, 0, len(sh.sessions[userID]))
	for s := range sh.sessions[userID] {
		targets = append(targets, s)
	}
	sh.mu.RUnlock()

	for _, s := range targets {
		s.Deliver(e)
	}
	if len(targets) > 0 {
		h.log.Debug("event delivered", "event", e.Name(), "user_id", userID, "sessions", len(targets))
	}
}

// NotifyMany fans an event out to a small fixed set of users, typically the
// two participants of a conversation.
func (h *Hub) NotifyMany(userIDs []string, e event.DomainEvent) {
	for _, id := range userIDs {
		h.Notify(id, e)
	}
}
