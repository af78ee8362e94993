package models

type User struct {
	ID             int64   `json:"id"`
	Username       string  `json:"username"`
	Email          *string `json:"email,omitempty"`
	HashedPassword string  `json:"-"`
	IsActive       bool    `json:"is_active"`
}

type Contact struct {
	ID       int64 `json:"id"`
	UserID   int64 `json:"user_id"`
	FriendID int64 `json:"friend_id"`
}

// UserSummary is the trimmed shape returned by contact listings and search.
type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}
