package api

import (
	"net/http"

	"huddle/internal/config"
	"huddle/internal/ice"
)

type CallHandler struct {
	turn config.TURNConfig
}

func NewCallHandler(turn config.TURNConfig) *CallHandler {
	return &CallHandler{turn: turn}
}

// GET /api/v1/calls/ice-servers
//
// Credentials are minted per request so their expiry window starts at call
// setup, not at server boot.
func (h *CallHandler) ICEServers(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	writeJSON(w, http.StatusOK, map[string]any{
		"iceServers": ice.BuildServers(h.turn, userID),
	})
}
