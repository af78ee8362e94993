package db

import (
	"fmt"
	"time"

	"huddle/internal/constants"
	"huddle/internal/models"
)

// CreateMessage stores a group message. The sender's name is denormalized
// into the row so history survives renames.
func (r *GroupRepository) CreateMessage(groupID, senderID int64, senderUsername, content string) (*models.GroupMessage, error) {
	now := time.Now().UTC()

	result, err := r.db.Exec(
		`INSERT INTO group_messages (group_id, sender_id, sender_username, content, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		groupID, senderID, senderUsername, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating group message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading group message ID: %w", err)
	}

	return &models.GroupMessage{
		ID:             id,
		GroupID:        groupID,
		SenderID:       senderID,
		SenderUsername: senderUsername,
		Content:        content,
		Timestamp:      now,
	}, nil
}

// ListMessages returns group history in chronological order.
func (r *GroupRepository) ListMessages(groupID int64, skip, limit int) ([]*models.GroupMessage, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > constants.GroupMessageHistoryMaxLimit {
		limit = constants.GroupMessageHistoryDefaultLimit
	}

	rows, err := r.db.Query(
		`SELECT id, group_id, sender_id, sender_username, content, timestamp FROM group_messages
		 WHERE group_id = ? ORDER BY timestamp, id LIMIT ? OFFSET ?`,
		groupID, limit, skip,
	)
	if err != nil {
		return nil, fmt.Errorf("querying group messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.GroupMessage, 0)
	for rows.Next() {
		var m models.GroupMessage
		if err := rows.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.SenderUsername, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning group message: %w", err)
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating group messages: %w", err)
	}

	return messages, nil
}
