package db

import (
	"database/sql"
	"errors"
	"fmt"

	"huddle/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(username string, email *string, hashedPassword string) (*models.User, error) {
	result, err := r.db.Exec(
		`INSERT INTO users (username, email, hashed_password, is_active) VALUES (?, ?, ?, 1)`,
		username, email, hashedPassword,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading user ID: %w", err)
	}

	return &models.User{
		ID:             id,
		Username:       username,
		Email:          email,
		HashedPassword: hashedPassword,
		IsActive:       true,
	}, nil
}

func (r *UserRepository) FindByID(id int64) (*models.User, error) {
	return r.findOne(`SELECT id, username, email, hashed_password, is_active FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindByUsername(username string) (*models.User, error) {
	return r.findOne(`SELECT id, username, email, hashed_password, is_active FROM users WHERE username = ?`, username)
}

// Username returns just the display name for a user ID.
func (r *UserRepository) Username(id int64) (string, error) {
	var username string
	err := r.db.QueryRow(`SELECT username FROM users WHERE id = ?`, id).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying username: %w", err)
	}
	return username, nil
}

func (r *UserRepository) findOne(query string, args ...any) (*models.User, error) {
	var u models.User
	var email sql.NullString

	err := r.db.QueryRow(query, args...).Scan(
		&u.ID,
		&u.Username,
		&email,
		&u.HashedPassword,
		&u.IsActive,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	u.Email = nullStringToPtr(email)

	return &u, nil
}
