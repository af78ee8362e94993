package api

import (
	"errors"
	"log/slog"
	"net/http"

	"huddle/internal/auth"
	"huddle/internal/db"
)

type AuthHandler struct {
	users      *db.UserRepository
	jwtService *auth.JWTService
}

func NewAuthHandler(users *db.UserRepository, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{users: users, jwtService: jwtService}
}

type RegisterRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=32"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      int64  `json:"user_id"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("error hashing password", "error", err)
		internalError(w)
		return
	}

	user, err := h.users.Create(req.Username, req.Email, hashed)
	if errors.Is(err, db.ErrDuplicate) {
		conflict(w, "Username or email already registered")
		return
	}
	if err != nil {
		slog.Error("error creating user", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// POST /api/v1/auth/token
//
// Accepts form-encoded credentials for compatibility with OAuth2 password
// flow clients.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		badRequest(w, "invalid form body")
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		badRequest(w, "username and password are required")
		return
	}

	user, err := h.users.FindByUsername(username)
	if errors.Is(err, db.ErrNotFound) {
		unauthorized(w, "Incorrect username or password")
		return
	}
	if err != nil {
		slog.Error("error finding user", "error", err)
		internalError(w)
		return
	}

	if !auth.CheckPassword(user.HashedPassword, password) {
		unauthorized(w, "Incorrect username or password")
		return
	}
	if !user.IsActive {
		unauthorized(w, "Inactive user")
		return
	}

	token, err := h.jwtService.GenerateAccessToken(user)
	if err != nil {
		slog.Error("error generating token", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserID:      user.ID,
	})
}
