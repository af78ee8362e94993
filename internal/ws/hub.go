package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"huddle/internal/models"
)

// MembershipOracle answers the group questions frame routing depends on.
// Implemented by db.GroupRepository.
type MembershipOracle interface {
	IsMember(groupID, userID int64) (bool, error)
	MemberIDs(groupID int64) ([]int64, error)
	GroupsForUser(userID int64) ([]*models.Group, error)
}

// Hub owns the session registry and the call registry. Both are guarded by
// one mutex so that a session's registration and its call participation
// change together; all socket writes happen outside it.
type Hub struct {
	oracle         MembershipOracle
	relayRawFrames bool

	mu       sync.Mutex
	sessions map[int64]*Session
	calls    *CallRegistry
}

func NewHub(oracle MembershipOracle, relayRawFrames bool) *Hub {
	return &Hub{
		oracle:         oracle,
		relayRawFrames: relayRawFrames,
		sessions:       make(map[int64]*Session),
		calls:          NewCallRegistry(),
	}
}

// Connect registers the session. Any prior session for the same user is
// closed with CloseSessionSuperseded and fully disconnected first, so a
// reconnecting client never coexists with its stale socket. Before the new
// session reads anything it is told about ongoing calls in its groups.
func (h *Hub) Connect(sess *Session) {
	for {
		h.mu.Lock()
		prior, ok := h.sessions[sess.userID]
		if !ok {
			h.sessions[sess.userID] = sess
			h.mu.Unlock()
			break
		}
		h.mu.Unlock()

		slog.Info("superseding session", "component", "hub", "user_id", sess.userID, "old_session_id", prior.id, "session_id", sess.id)
		prior.close(CloseSessionSuperseded, "connected elsewhere")
		h.disconnectSession(prior)
	}

	slog.Info("user connected", "component", "hub", "user_id", sess.userID, "username", sess.username, "session_id", sess.id)

	h.notifyOngoingCalls(sess)
}

// Disconnect removes whatever session the user currently has.
func (h *Hub) Disconnect(userID int64) {
	h.mu.Lock()
	sess, ok := h.sessions[userID]
	h.mu.Unlock()

	if ok {
		h.disconnectSession(sess)
	}
}

// disconnectSession runs the disconnect cascade for one specific session: it
// unregisters the user and pulls them out of every group call in a single
// critical section, then notifies call peers and broadcasts the departure.
// A session that was already replaced or removed is left alone, which makes
// the cascade idempotent and keeps a stale socket's teardown from killing
// its successor.
func (h *Hub) disconnectSession(sess *Session) {
	h.mu.Lock()
	current, ok := h.sessions[sess.userID]
	if !ok || current != sess {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, sess.userID)
	departures := h.calls.DropUser(sess.userID)
	h.mu.Unlock()

	sess.close(websocket.CloseNormalClosure, "")

	for _, dep := range departures {
		h.notifyCallDeparture(sess, dep)
	}

	if data, ok := marshalFrame(userLeftFrame{
		Type:     MsgTypeUserLeft,
		UserID:   sess.userID,
		Username: sess.username,
	}); ok {
		h.broadcast(data)
	}

	slog.Info("user disconnected", "component", "hub", "user_id", sess.userID, "session_id", sess.id, "calls_left", len(departures))
}

// notifyCallDeparture tells the right audience that a disconnected user fell
// out of a call: remaining participants hear a leave, and if the call ended,
// every connected group member hears that instead.
func (h *Hub) notifyCallDeparture(sess *Session, dep CallDeparture) {
	switch dep.Outcome {
	case LeaveEnded:
		memberIDs, err := h.oracle.MemberIDs(dep.GroupID)
		if err != nil {
			slog.Error("resolving group members", "component", "hub", "group_id", dep.GroupID, "error", err)
			return
		}
		if data, ok := marshalFrame(groupCallDroppedFrame{
			Type:    MsgTypeGroupCallEnded,
			GroupID: dep.GroupID,
			Reason:  sess.username + " disconnected, ending the call.",
		}); ok {
			h.sendToUsers(memberIDs, data)
		}

	case LeaveRemaining:
		if data, ok := marshalFrame(groupCallLeaveFrame{
			Type:           MsgTypeGroupCallLeave,
			UserID:         sess.userID,
			SenderUsername: sess.username,
			GroupID:        dep.GroupID,
		}); ok {
			h.sendToUsers(dep.Remaining, data)
		}
	}
}

// IsConnected reports whether the user has a registered session.
func (h *Hub) IsConnected(userID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sessions[userID]
	return ok
}

// Send unicasts a frame to one user. Absent users are skipped silently; a
// failed write disconnects the recipient.
func (h *Hub) Send(userID int64, frame any) SendResult {
	data, ok := marshalFrame(frame)
	if !ok {
		return SendFailed
	}
	return h.sendBytes(userID, data)
}

// SendToUsers delivers a frame to each listed user that is connected.
func (h *Hub) SendToUsers(userIDs []int64, frame any) {
	data, ok := marshalFrame(frame)
	if !ok {
		return
	}
	h.sendToUsers(userIDs, data)
}

func (h *Hub) sendBytes(userID int64, data []byte) SendResult {
	h.mu.Lock()
	sess, ok := h.sessions[userID]
	h.mu.Unlock()

	if !ok {
		return SendAbsent
	}
	if !h.deliver(sess, data) {
		return SendFailed
	}
	return SendDelivered
}

// deliver writes to one session. On failure the session is torn down with
// the full cascade, exactly as if its read loop had died.
func (h *Hub) deliver(sess *Session, data []byte) bool {
	if err := sess.send(data); err != nil {
		slog.Warn("dropping unreachable session", "component", "hub", "user_id", sess.userID, "session_id", sess.id, "error", err)
		h.disconnectSession(sess)
		return false
	}
	return true
}

func (h *Hub) broadcast(data []byte) {
	for _, sess := range h.sessionSnapshot() {
		h.deliver(sess, data)
	}
}

func (h *Hub) broadcastExcept(except int64, data []byte) {
	for _, sess := range h.sessionSnapshot() {
		if sess.userID == except {
			continue
		}
		h.deliver(sess, data)
	}
}

func (h *Hub) sendToUsers(userIDs []int64, data []byte) {
	for _, sess := range h.lookupSessions(userIDs, nil) {
		h.deliver(sess, data)
	}
}

func (h *Hub) sendToUsersExcept(userIDs []int64, except int64, data []byte) {
	for _, sess := range h.lookupSessions(userIDs, &except) {
		h.deliver(sess, data)
	}
}

func (h *Hub) sessionSnapshot() []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		out = append(out, sess)
	}
	return out
}

func (h *Hub) lookupSessions(userIDs []int64, except *int64) []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Session, 0, len(userIDs))
	for _, id := range userIDs {
		if except != nil && id == *except {
			continue
		}
		if sess, ok := h.sessions[id]; ok {
			out = append(out, sess)
		}
	}
	return out
}

// Shutdown closes every session and drops all state.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.sessions = make(map[int64]*Session)
	h.calls = NewCallRegistry()
	h.mu.Unlock()

	for _, sess := range sessions {
		sess.close(websocket.CloseGoingAway, "server shutting down")
	}

	slog.Info("shutdown complete", "component", "hub", "sessions_closed", len(sessions))
}

func marshalFrame(frame any) ([]byte, bool) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("marshaling frame", "component", "hub", "error", err)
		return nil, false
	}
	return data, true
}
