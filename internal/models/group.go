package models

import "time"

type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatorID int64     `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
	Creator   *User     `json:"creator,omitempty"`
}

type GroupMember struct {
	ID       int64     `json:"id"`
	GroupID  int64     `json:"group_id"`
	UserID   int64     `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
	User     *User     `json:"user,omitempty"`
}

type GroupMessage struct {
	ID             int64     `json:"id"`
	GroupID        int64     `json:"group_id"`
	SenderID       int64     `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// GroupDetails is the full view returned when fetching a single group.
type GroupDetails struct {
	Group
	Members  []GroupMember  `json:"members"`
	Messages []GroupMessage `json:"messages"`
}

// Member roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)
