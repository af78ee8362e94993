package db

import (
	"fmt"
	"time"

	"huddle/internal/constants"
	"huddle/internal/models"
)

type MessageRepository struct {
	db *DB
}

func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(senderID, receiverID int64, content string) (*models.Message, error) {
	now := time.Now().UTC()

	result, err := r.db.Exec(
		`INSERT INTO messages (sender_id, receiver_id, content, timestamp) VALUES (?, ?, ?, ?)`,
		senderID, receiverID, content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading message ID: %w", err)
	}

	return &models.Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  now,
	}, nil
}

// ListBetween returns the conversation between two users in chronological
// order.
func (r *MessageRepository) ListBetween(userID, friendID int64, skip, limit int) ([]*models.Message, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > constants.MessageHistoryMaxLimit {
		limit = constants.MessageHistoryDefaultLimit
	}

	rows, err := r.db.Query(
		`SELECT id, sender_id, receiver_id, content, timestamp FROM messages
		 WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		 ORDER BY timestamp, id LIMIT ? OFFSET ?`,
		userID, friendID, friendID, userID, limit, skip,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}
