package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 15 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = 10 * time.Second

	// Maximum message size allowed from peer (SDP offers can be large)
	maxMessageSize = 65536
)

// sessionConn is the subset of *websocket.Conn the session uses. Tests
// substitute in-memory fakes.
type sessionConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Session is one user's registered WebSocket connection.
type Session struct {
	id       string
	userID   int64
	username string
	conn     sessionConn

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func NewSession(conn *websocket.Conn, userID int64, username string) *Session {
	return newSession(conn, userID, username)
}

func newSession(conn sessionConn, userID int64, username string) *Session {
	return &Session{
		id:       uuid.New().String(),
		userID:   userID,
		username: username,
		conn:     conn,
		done:     make(chan struct{}),
	}
}

func (s *Session) ID() string       { return s.id }
func (s *Session) UserID() int64    { return s.userID }
func (s *Session) Username() string { return s.username }

// send writes one text frame. Writes are serialized; concurrent callers
// (dispatch fan-out, REST relays) share the socket.
func (s *Session) send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// close sends a close frame with the given code and tears down the
// connection. Safe to call more than once.
func (s *Session) close(code int, reason string) {
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, reason)
		if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
			slog.Debug("writing close frame", "component", "ws", "session_id", s.id, "error", err)
		}
		s.conn.Close()
		close(s.done)
	})
}

// ReadPump consumes frames until the connection drops, handing each one to
// the hub. It runs the disconnect cascade on exit.
func (s *Session) ReadPump(h *Hub) {
	defer h.disconnectSession(s)

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, CloseSessionSuperseded) {
				slog.Debug("websocket read ended", "component", "ws", "session_id", s.id, "user_id", s.userID, "error", err)
			}
			return
		}

		h.Route(s, message)
	}
}

// KeepAlive pings the peer until the session closes. WriteControl is safe
// concurrently with send, so no write lock is taken.
func (s *Session) KeepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
