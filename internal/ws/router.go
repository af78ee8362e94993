package ws

import (
	"errors"
	"fmt"
	"strings"
)

// Route decodes one inbound frame and relays it. Undecodable payloads get an
// error frame back and, when raw relay is enabled, are still fanned out as
// plain text so cheap clients can speak through the server. Any internal
// failure is reported to the sender without dropping the session.
func (h *Hub) Route(s *Session, raw []byte) {
	env, err := decodeEnvelope(raw)
	if err != nil {
		if errors.Is(err, errNotObject) {
			h.sendError(s, "Error processing your message: "+err.Error())
			return
		}

		h.sendError(s, "Invalid JSON payload")
		if h.relayRawFrames {
			if data, ok := marshalFrame(rawTextFrame{
				Type:       MsgTypeText,
				FromUserID: s.userID,
				Content:    string(raw),
			}); ok {
				h.broadcastExcept(s.userID, data)
			}
		}
		return
	}

	if err := h.dispatch(s, env); err != nil {
		h.sendError(s, "Error processing your message: "+err.Error())
	}
}

func (h *Hub) dispatch(s *Session, env Envelope) error {
	target, hasTarget, err := env.targetUserID()
	if err != nil {
		h.sendError(s, err.Error())
		return nil
	}

	groupID, hasGroup, err := env.groupID()
	if err != nil {
		h.sendError(s, err.Error())
		return nil
	}

	// Frames relayed verbatim still identify their author.
	if _, ok := env["sender_username"]; !ok {
		env["sender_username"] = s.username
	}

	msgType := env.Type()

	switch {
	case isDirectCallType(msgType) || (msgType == MsgTypeCandidate && !hasGroup):
		return h.relayDirectCall(s, env, msgType, target, hasTarget)

	case strings.HasPrefix(msgType, groupFramePrefix) || (msgType == MsgTypeCandidate && hasGroup):
		return h.relayGroupFrame(s, env, msgType, groupID, hasGroup, target, hasTarget)

	case msgType == MsgTypeChatMessage:
		data, ok := marshalFrame(env)
		if !ok {
			return nil
		}
		if hasTarget && target != 0 {
			h.sendBytes(target, data)
		} else {
			h.broadcastExcept(s.userID, data)
		}
		return nil

	case msgType == MsgTypeJoin:
		username := any(s.username)
		if env.truthy("username") {
			username = env["username"]
		}
		if data, ok := marshalFrame(userJoinedFrame{
			Type:     MsgTypeUserJoined,
			UserID:   s.userID,
			Username: username,
		}); ok {
			h.broadcastExcept(s.userID, data)
		}
		return nil

	default:
		// Unknown types pass through to everyone else.
		if data, ok := marshalFrame(env); ok {
			h.broadcastExcept(s.userID, data)
		}
		return nil
	}
}

func isDirectCallType(msgType string) bool {
	switch msgType {
	case MsgTypeCallOffer, MsgTypeCallAnswer, MsgTypeCallRejected, MsgTypeCallBusy, MsgTypeCallEnded:
		return true
	}
	return false
}

// relayDirectCall forwards 1:1 signaling to its target, stamping the sender
// so the callee knows who is ringing regardless of what the client claimed.
func (h *Hub) relayDirectCall(s *Session, env Envelope, msgType string, target int64, hasTarget bool) error {
	env["from"] = s.userID

	if !hasTarget {
		h.sendError(s, fmt.Sprintf("%s requires a 'to' or 'targetUserId' field specifying the target user ID.", msgType))
		return nil
	}

	if data, ok := marshalFrame(env); ok {
		h.sendBytes(target, data)
	}
	return nil
}

// relayGroupFrame handles everything group-addressed. Senders must be group
// members; the envelope is restamped with the canonical group ID, sender ID,
// and sender name before any relay.
func (h *Hub) relayGroupFrame(s *Session, env Envelope, msgType string, groupID int64, hasGroup bool, target int64, hasTarget bool) error {
	if !hasGroup {
		h.sendError(s, fmt.Sprintf("%s requires a 'groupId' field.", msgType))
		return nil
	}

	member, err := h.oracle.IsMember(groupID, s.userID)
	if err != nil {
		return fmt.Errorf("checking group membership: %w", err)
	}
	if !member {
		h.sendError(s, fmt.Sprintf("You are not a member of group %d.", groupID))
		return nil
	}

	env["groupId"] = groupID
	env["userId"] = s.userID
	env["sender_username"] = s.username

	switch msgType {
	case MsgTypeGroupCallStart:
		return h.handleGroupCallStart(s, env, groupID)
	case MsgTypeGroupCallJoin:
		return h.handleGroupCallJoin(s, env, groupID)
	case MsgTypeGroupCallLeave:
		return h.handleGroupCallLeave(s, groupID)
	case MsgTypeGroupCallBusy:
		return h.handleGroupCallBusy(s, env, groupID, target, hasTarget)
	case MsgTypeGroupCallOffer, MsgTypeGroupCallAnswer:
		return h.relayNegotiation(s, env, groupID, target, hasTarget)
	default:
		// group-ice-candidate, candidate, and any other group-* frame go to
		// the active participants.
		return h.relayToParticipants(s, env, groupID)
	}
}

// handleGroupCallStart rings the group: the caller goes into the roster and
// every other connected member is notified. Starting a call that is already
// running just joins it and leaves the modality as it was.
func (h *Hub) handleGroupCallStart(s *Session, env Envelope, groupID int64) error {
	video := env.truthy("isVideo")

	h.mu.Lock()
	h.calls.Start(groupID, s.userID, video)
	h.mu.Unlock()

	return h.notifyGroupMembers(s, groupID, groupCallStartFrame{
		Type:           MsgTypeGroupCallStart,
		UserID:         s.userID,
		SenderUsername: s.username,
		GroupID:        groupID,
		IsVideo:        echoField(env, "isVideo", false),
		Recipients:     echoField(env, "recipients", []any{}),
	})
}

// handleGroupCallJoin adds the caller to the roster and announces the new
// participant list to the group's connected members.
func (h *Hub) handleGroupCallJoin(s *Session, env Envelope, groupID int64) error {
	h.mu.Lock()
	roster := h.calls.Join(groupID, s.userID)
	h.mu.Unlock()

	return h.notifyGroupMembers(s, groupID, groupCallJoinFrame{
		Type:               MsgTypeGroupCallJoin,
		UserID:             s.userID,
		SenderUsername:     s.username,
		GroupID:            groupID,
		IsVideo:            echoField(env, "isVideo", false),
		ActiveParticipants: roster,
		JoinTime:           echoField(env, "joinTime", nil),
	})
}

// handleGroupCallLeave removes the caller from the roster. The last
// participant leaving ends the call for the whole group, including the
// leaver; otherwise only the remaining participants hear about it. Leaving
// a call the user was never in is silent.
func (h *Hub) handleGroupCallLeave(s *Session, groupID int64) error {
	h.mu.Lock()
	outcome, remaining := h.calls.Leave(groupID, s.userID)
	h.mu.Unlock()

	switch outcome {
	case LeaveEnded:
		memberIDs, err := h.oracle.MemberIDs(groupID)
		if err != nil {
			return fmt.Errorf("resolving group members: %w", err)
		}
		if data, ok := marshalFrame(groupCallEndedFrame{
			Type:           MsgTypeGroupCallEnded,
			UserID:         s.userID,
			SenderUsername: s.username,
			GroupID:        groupID,
			Reason:         "Last participant left the call",
		}); ok {
			h.sendToUsers(memberIDs, data)
		}

	case LeaveRemaining:
		if data, ok := marshalFrame(groupCallLeaveFrame{
			Type:           MsgTypeGroupCallLeave,
			UserID:         s.userID,
			SenderUsername: s.username,
			GroupID:        groupID,
		}); ok {
			h.sendToUsers(remaining, data)
		}
	}
	return nil
}

// handleGroupCallBusy either tells one specific user the caller is busy, or
// lets the active participants know.
func (h *Hub) handleGroupCallBusy(s *Session, env Envelope, groupID int64, target int64, hasTarget bool) error {
	frame := groupCallBusyFrame{
		Type:           MsgTypeGroupCallBusy,
		UserID:         s.userID,
		SenderUsername: s.username,
		GroupID:        groupID,
		Reason:         echoField(env, "reason", "User is busy"),
	}

	if hasTarget && target != 0 {
		frame.To = &target
		if data, ok := marshalFrame(frame); ok {
			h.sendBytes(target, data)
		}
		return nil
	}

	if data, ok := marshalFrame(frame); ok {
		h.sendToUsersExcept(h.callParticipants(groupID), s.userID, data)
	}
	return nil
}

// relayNegotiation forwards group SDP offers and answers. Senders that are
// not yet in the roster are added, since negotiating is participating. With
// a target the envelope goes to that user alone, otherwise to the other
// participants.
func (h *Hub) relayNegotiation(s *Session, env Envelope, groupID int64, target int64, hasTarget bool) error {
	h.mu.Lock()
	participants := h.calls.Join(groupID, s.userID)
	h.mu.Unlock()

	data, ok := marshalFrame(env)
	if !ok {
		return nil
	}

	if hasTarget && target != 0 {
		h.sendBytes(target, data)
		return nil
	}

	h.sendToUsersExcept(participants, s.userID, data)
	return nil
}

func (h *Hub) relayToParticipants(s *Session, env Envelope, groupID int64) error {
	if data, ok := marshalFrame(env); ok {
		h.sendToUsersExcept(h.callParticipants(groupID), s.userID, data)
	}
	return nil
}

// notifyGroupMembers fans a frame out to the group's connected members,
// excluding the acting user.
func (h *Hub) notifyGroupMembers(s *Session, groupID int64, frame any) error {
	memberIDs, err := h.oracle.MemberIDs(groupID)
	if err != nil {
		return fmt.Errorf("resolving group members: %w", err)
	}

	if data, ok := marshalFrame(frame); ok {
		h.sendToUsersExcept(memberIDs, s.userID, data)
	}
	return nil
}

func (h *Hub) callParticipants(groupID int64) []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls.Participants(groupID)
}

func (h *Hub) sendError(s *Session, detail string) {
	if data, ok := marshalFrame(errorFrame{Type: MsgTypeError, Detail: detail}); ok {
		h.deliver(s, data)
	}
}

// echoField relays a client-supplied field as-is, including explicit nulls,
// substituting the fallback only when the key is absent.
func echoField(env Envelope, key string, fallback any) any {
	if v, ok := env[key]; ok {
		return v
	}
	return fallback
}
