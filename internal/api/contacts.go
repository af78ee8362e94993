package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"huddle/internal/db"
)

type ContactHandler struct {
	users    *db.UserRepository
	contacts *db.ContactRepository
}

func NewContactHandler(users *db.UserRepository, contacts *db.ContactRepository) *ContactHandler {
	return &ContactHandler{users: users, contacts: contacts}
}

// GET /api/v1/contacts/search?query=
func (h *ContactHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		badRequest(w, "Search query cannot be empty")
		return
	}

	results, err := h.contacts.SearchUsers(userID, query, 20)
	if err != nil {
		slog.Error("error searching users", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

type AddContactRequest struct {
	FriendID int64 `json:"friend_id" validate:"required"`
}

// POST /api/v1/contacts
func (h *ContactHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	var req AddContactRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if req.FriendID == userID {
		badRequest(w, "Cannot add yourself as a contact")
		return
	}

	if _, err := h.users.FindByID(req.FriendID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Friend user not found")
			return
		}
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	exists, err := h.contacts.Exists(userID, req.FriendID)
	if err != nil {
		slog.Error("error checking contact", "error", err)
		internalError(w)
		return
	}
	if exists {
		conflict(w, "Contact already exists")
		return
	}

	contact, err := h.contacts.Add(userID, req.FriendID)
	if errors.Is(err, db.ErrDuplicate) {
		conflict(w, "Contact already exists")
		return
	}
	if err != nil {
		slog.Error("error adding contact", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, contact)
}

// GET /api/v1/contacts
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	friends, err := h.contacts.ListFriends(userID)
	if err != nil {
		slog.Error("error listing contacts", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, friends)
}

// DELETE /api/v1/contacts/{friend_id}
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r)

	friendID, err := strconv.ParseInt(chi.URLParam(r, "friend_id"), 10, 64)
	if err != nil {
		badRequest(w, "friend_id must be an integer")
		return
	}

	if err := h.contacts.Delete(userID, friendID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Contact not found or not deletable.")
			return
		}
		slog.Error("error deleting contact", "error", err)
		internalError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
