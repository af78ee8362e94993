package db

import (
	"fmt"

	"huddle/internal/models"
)

type ContactRepository struct {
	db *DB
}

func NewContactRepository(db *DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Add(userID, friendID int64) (*models.Contact, error) {
	result, err := r.db.Exec(
		`INSERT INTO contacts (user_id, friend_id) VALUES (?, ?)`,
		userID, friendID,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("adding contact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading contact ID: %w", err)
	}

	return &models.Contact{ID: id, UserID: userID, FriendID: friendID}, nil
}

// Exists reports whether a contact row links the two users in either
// direction.
func (r *ContactRepository) Exists(userID, friendID int64) (bool, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM contacts
		 WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)`,
		userID, friendID, friendID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking contact: %w", err)
	}
	return count > 0, nil
}

// ListFriends returns the users linked to userID from either side of the
// contacts table.
func (r *ContactRepository) ListFriends(userID int64) ([]*models.UserSummary, error) {
	rows, err := r.db.Query(
		`SELECT u.id, u.username FROM users u
		 JOIN contacts c ON (c.friend_id = u.id AND c.user_id = ?)
		                 OR (c.user_id = u.id AND c.friend_id = ?)
		 ORDER BY u.username`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying contacts: %w", err)
	}
	defer rows.Close()

	friends := make([]*models.UserSummary, 0)
	for rows.Next() {
		var f models.UserSummary
		if err := rows.Scan(&f.ID, &f.Username); err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		friends = append(friends, &f)
	}

	return friends, rows.Err()
}

func (r *ContactRepository) Delete(userID, friendID int64) error {
	result, err := r.db.Exec(
		`DELETE FROM contacts
		 WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)`,
		userID, friendID, friendID, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting contact: %w", err)
	}
	return checkRowsAffected(result)
}

// SearchUsers finds users whose name contains the query, excluding the
// searching user and anyone already linked to them.
func (r *ContactRepository) SearchUsers(userID int64, query string, limit int) ([]*models.UserSummary, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	rows, err := r.db.Query(
		`SELECT id, username FROM users
		 WHERE username LIKE ? ESCAPE '\' AND id != ?
		   AND id NOT IN (SELECT friend_id FROM contacts WHERE user_id = ?
		                  UNION
		                  SELECT user_id FROM contacts WHERE friend_id = ?)
		 ORDER BY username LIMIT ?`,
		"%"+escapeLike(query)+"%", userID, userID, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	defer rows.Close()

	results := make([]*models.UserSummary, 0)
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		results = append(results, &u)
	}

	return results, rows.Err()
}
