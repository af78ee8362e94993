package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"huddle/internal/constants"
	"huddle/internal/db"
	"huddle/internal/ws"
)

// messagePolicy strips markup that could be replayed into other clients'
// DOMs. Applied to direct and group message content before persistence.
var messagePolicy = bluemonday.UGCPolicy()

type MessageHandler struct {
	users    *db.UserRepository
	messages *db.MessageRepository
	hub      *ws.Hub
}

func NewMessageHandler(users *db.UserRepository, messages *db.MessageRepository, hub *ws.Hub) *MessageHandler {
	return &MessageHandler{users: users, messages: messages, hub: hub}
}

type CreateMessageRequest struct {
	Content    string `json:"content" validate:"required"`
	ReceiverID int64  `json:"receiver_id" validate:"required"`
}

// POST /api/v1/messages
//
// Persists the message, then relays a realtime copy to the receiver if they
// are connected.
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	var req CreateMessageRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if req.ReceiverID == userID {
		badRequest(w, "Cannot send message to yourself")
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

	if _, err := h.users.FindByID(req.ReceiverID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Receiver not found")
			return
		}
		slog.Error("error finding receiver", "error", err)
		internalError(w)
		return
	}

	message, err := h.messages.Create(userID, req.ReceiverID, content)
	if err != nil {
		slog.Error("error creating message", "error", err)
		internalError(w)
		return
	}

	h.hub.Send(req.ReceiverID, ws.ChatMessageFrame{
		Type:           ws.MsgTypeChatMessage,
		ID:             message.ID,
		SenderID:       message.SenderID,
		ReceiverID:     message.ReceiverID,
		Content:        message.Content,
		Timestamp:      message.Timestamp,
		SenderUsername: sender.Username,
	})

	writeJSON(w, http.StatusCreated, message)
}

// GET /api/v1/messages/{friend_id}?skip=&limit=
func (h *MessageHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	friendID, err := strconv.ParseInt(chi.URLParam(r, "friend_id"), 10, 64)
	if err != nil {
		badRequest(w, "friend_id must be an integer")
		return
	}

	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", constants.MessageHistoryDefaultLimit)

	messages, err := h.messages.ListBetween(userID, friendID, skip, limit)
	if err != nil {
		slog.Error("error listing messages", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// queryInt parses an integer query parameter, falling back on absence or
// garbage.
func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
