package api

import (
	"errors"
	"log/slog"
	"net/http"

	"huddle/internal/db"
)

type UserHandler struct {
	users *db.UserRepository
}

func NewUserHandler(users *db.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

// GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	user, err := h.users.FindByID(userID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
