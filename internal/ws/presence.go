package ws

import "log/slog"

// notifyOngoingCalls tells a freshly connected user about active calls in
// their groups, before the session's read loop starts. Sent only when there
// is something to report.
func (h *Hub) notifyOngoingCalls(sess *Session) {
	groups, err := h.oracle.GroupsForUser(sess.userID)
	if err != nil {
		slog.Error("resolving user groups", "component", "hub", "user_id", sess.userID, "error", err)
		return
	}
	if len(groups) == 0 {
		return
	}

	h.mu.Lock()
	calls := make([]ongoingCallInfo, 0)
	for _, g := range groups {
		participants := h.calls.Participants(g.ID)
		if len(participants) == 0 {
			continue
		}
		calls = append(calls, ongoingCallInfo{
			GroupID:          g.ID,
			GroupName:        g.Name,
			Participants:     participants,
			ParticipantCount: len(participants),
			IsVideo:          h.calls.IsVideo(g.ID),
		})
	}
	h.mu.Unlock()

	if len(calls) == 0 {
		return
	}

	if data, ok := marshalFrame(ongoingCallsFrame{Type: MsgTypeOngoingGroupCalls, Calls: calls}); ok {
		h.deliver(sess, data)
	}
}
