package api

import (
	"log/slog"
	"net/http"
	"strings"

	"huddle/internal/constants"
	"huddle/internal/ws"
)

type PostGroupMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// POST /api/v1/groups/{group_id}/messages
//
// Persists the message, then fans a realtime copy out to every other group
// member with an open session.
func (h *GroupHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	group, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	if !h.requireMember(w, group.ID, userID, "User is not a member of this group and cannot send messages") {
		return
	}

	var req PostGroupMessageRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	content := strings.TrimSpace(messagePolicy.Sanitize(req.Content))
	if content == "" {
		badRequest(w, "Message content cannot be empty")
		return
	}
	if len(content) > constants.MaxMessageContentLength {
		writeError(w, http.StatusBadRequest, constants.ErrCodeMessageTooLong, "Message exceeds maximum length")
		return
	}

	sender, err := h.users.FindByID(userID)
	if err != nil {
		slog.Error("error finding sender", "error", err)
		internalError(w)
		return
	}

	message, err := h.groups.CreateMessage(group.ID, sender.ID, sender.Username, content)
	if err != nil {
		slog.Error("error creating group message", "error", err)
		internalError(w)
		return
	}

	memberIDs, err := h.groups.MemberIDs(group.ID)
	if err != nil {
		slog.Error("error listing member ids", "error", err)
	} else {
		frame := ws.GroupMessageFrame{
			Type:           ws.MsgTypeGroupMessage,
			ID:             message.ID,
			GroupID:        message.GroupID,
			SenderID:       message.SenderID,
			SenderUsername: message.SenderUsername,
			Content:        message.Content,
			Timestamp:      message.Timestamp,
		}
		recipients := memberIDs[:0:0]
		for _, id := range memberIDs {
			if id != sender.ID {
				recipients = append(recipients, id)
			}
		}
		h.hub.SendToUsers(recipients, frame)
	}

	writeJSON(w, http.StatusCreated, message)
}

// GET /api/v1/groups/{group_id}/messages
func (h *GroupHandler) ListGroupMessages(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	group, ok := h.loadGroup(w, r)
	if !ok {
		return
	}
	if !h.requireMember(w, group.ID, userID, "User is not a member of this group and cannot view messages") {
		return
	}

	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", constants.GroupMessageHistoryDefaultLimit)

	messages, err := h.groups.ListMessages(group.ID, skip, limit)
	if err != nil {
		slog.Error("error listing group messages", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}
