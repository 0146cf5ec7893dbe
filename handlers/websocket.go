package handlers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"marketchat/auth"
	"marketchat/domain/event"
	"marketchat/hub"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 1024
)

// SocketHandler admits authenticated websocket connections into the hub and
// relays the ephemeral typing signals clients push over the socket.
type SocketHandler struct {
	hub        *hub.Hub
	tokens     *auth.TokenManager
	service    typingRelay
	bufferSize int
	log        *slog.Logger
}

// typingRelay is the slice of the chat service the socket layer needs.
type typingRelay interface {
	Typing(selfID, convID string, stopped bool) error
}

func NewSocketHandler(h *hub.Hub, tokens *auth.TokenManager, svc typingRelay, bufferSize int, log *slog.Logger) *SocketHandler {
	return &SocketHandler{hub: h, tokens: tokens, service: svc, bufferSize: bufferSize, log: log}
}

func (h *SocketHandler) Register(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(h.handle))
}

func (h *SocketHandler) handle(conn *websocket.Conn) {
	userID, err := h.tokens.Validate(conn.Query("token"))
	if err != nil {
		_ = conn.WriteJSON(fiber.Map{"error": "unauthenticated"})
		_ = conn.Close()
		return
	}

	sess := newSession(conn, userID, h.bufferSize)
	h.hub.Register(userID, sess)
	h.log.Info("session connected", "user_id", userID)
	defer func() {
		h.hub.Unregister(userID, sess)
		sess.close()
		h.log.Info("session disconnected", "user_id", userID)
	}()

	go sess.writePump(h.log)
	h.readPump(sess)
}

type inboundFrame struct {
	Event          string `json:"event"`
	ConversationID string `json:"conversationId"`
}

func (h *SocketHandler) readPump(s *session) {
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame inboundFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error", "user_id", s.userID, "error", err)
			}
			return
		}
		// Typing signals are best-effort; a failed relay is not worth a frame
		// back to the client.
		switch frame.Event {
		case "typing":
			_ = h.service.Typing(s.userID, frame.ConversationID, false)
		case "stop_typing":
			_ = h.service.Typing(s.userID, frame.ConversationID, true)
		}
	}
}

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// session is one connected websocket. It implements hub.Session with a
// buffered channel between the hub and the write pump; a full buffer drops
// the event rather than blocking the hub.
type session struct {
	conn      *websocket.Conn
	userID    string
	events    chan event.DomainEvent
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, userID string, bufferSize int) *session {
	return &session{
		conn:   conn,
		userID: userID,
		events: make(chan event.DomainEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

func (s *session) Deliver(e event.DomainEvent) {
	select {
	case s.events <- e:
	default:
		// Slow consumer. The REST read path catches the client up.
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *session) writePump(log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case e := <-s.events:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(envelope{Event: e.Name(), Data: e}); err != nil {
				log.Debug("websocket write failed", "user_id", s.userID, "error", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
