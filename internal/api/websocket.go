package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"huddle/internal/db"
	"huddle/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	hub   *ws.Hub
	users *db.UserRepository
}

func NewWebSocketHandler(hub *ws.Hub, users *db.UserRepository) *WebSocketHandler {
	return &WebSocketHandler{
		hub:   hub,
		users: users,
	}
}

// ServeWS upgrades /ws/{user_id} and hands the connection to the hub.
//
// The upgrade happens before the user_id is validated: a plain HTTP error
// never reaches a WebSocket client as a close code, and clients key their
// error handling off close 4001.
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, parseErr := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	if parseErr != nil {
		msg := websocket.FormatCloseMessage(ws.CloseInvalidUserID, "invalid user id")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(10*time.Second))
		conn.Close()
		return
	}

	username, err := h.users.Username(userID)
	if err != nil {
		username = fmt.Sprintf("user_%d", userID)
	}

	sess := ws.NewSession(conn, userID, username)
	h.hub.Connect(sess)

	go sess.KeepAlive()
	go sess.ReadPump(h.hub)
}
