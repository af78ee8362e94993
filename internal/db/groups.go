package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"huddle/internal/models"
)

type GroupRepository struct {
	db *DB
}

func NewGroupRepository(db *DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// Create inserts the group and enrolls the creator as its first admin.
func (r *GroupRepository) Create(name string, creatorID int64) (*models.Group, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	result, err := tx.Exec(
		`INSERT INTO groups (name, creator_id, created_at) VALUES (?, ?, ?)`,
		name, creatorID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}

	groupID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading group ID: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO group_members (group_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		groupID, creatorID, models.RoleAdmin, now,
	)
	if err != nil {
		return nil, fmt.Errorf("adding creator as member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return r.FindByID(groupID)
}

const groupSelect = `SELECT g.id, g.name, g.creator_id, g.created_at,
	u.id, u.username, u.email, u.is_active
	FROM groups g JOIN users u ON g.creator_id = u.id`

func (r *GroupRepository) FindByID(groupID int64) (*models.Group, error) {
	g, err := scanGroup(r.db.QueryRow(groupSelect+` WHERE g.id = ?`, groupID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying group: %w", err)
	}
	return g, nil
}

// ListForUser returns every group the user belongs to.
func (r *GroupRepository) ListForUser(userID int64) ([]*models.Group, error) {
	rows, err := r.db.Query(
		groupSelect+` JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = ? ORDER BY g.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	groups := make([]*models.Group, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

func (r *GroupRepository) UpdateName(groupID int64, name string) error {
	result, err := r.db.Exec(`UPDATE groups SET name = ? WHERE id = ?`, name, groupID)
	if err != nil {
		return fmt.Errorf("updating group: %w", err)
	}
	return checkRowsAffected(result)
}

// Delete removes the group along with its membership rows and message
// history.
func (r *GroupRepository) Delete(groupID int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM group_messages WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("deleting group messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM group_members WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("deleting group members: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM groups WHERE id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("deleting group: %w", err)
	}
	if err := checkRowsAffected(result); err != nil {
		return err
	}

	return tx.Commit()
}

const memberSelect = `SELECT m.id, m.group_id, m.user_id, m.role, m.joined_at,
	u.id, u.username, u.email, u.is_active
	FROM group_members m JOIN users u ON m.user_id = u.id`

func (r *GroupRepository) Members(groupID int64) ([]*models.GroupMember, error) {
	rows, err := r.db.Query(memberSelect+` WHERE m.group_id = ? ORDER BY m.joined_at, m.id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	members := make([]*models.GroupMember, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

func (r *GroupRepository) FindMember(groupID, userID int64) (*models.GroupMember, error) {
	m, err := scanMember(r.db.QueryRow(memberSelect+` WHERE m.group_id = ? AND m.user_id = ?`, groupID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying member: %w", err)
	}
	return m, nil
}

func (r *GroupRepository) AddMember(groupID, userID int64, role string) (*models.GroupMember, error) {
	if role == "" {
		role = models.RoleMember
	}

	_, err := r.db.Exec(
		`INSERT INTO group_members (group_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		groupID, userID, role, time.Now().UTC(),
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("adding member: %w", err)
	}

	return r.FindMember(groupID, userID)
}

func (r *GroupRepository) RemoveMember(groupID, userID int64) error {
	result, err := r.db.Exec(
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("removing member: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *GroupRepository) UpdateMemberRole(groupID, userID int64, role string) error {
	result, err := r.db.Exec(
		`UPDATE group_members SET role = ? WHERE group_id = ? AND user_id = ?`,
		role, groupID, userID,
	)
	if err != nil {
		return fmt.Errorf("updating member role: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *GroupRepository) MemberCount(groupID int64) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM group_members WHERE group_id = ?`, groupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting members: %w", err)
	}
	return count, nil
}

func (r *GroupRepository) AdminCount(groupID int64) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM group_members WHERE group_id = ? AND role = ?`,
		groupID, models.RoleAdmin,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return count, nil
}

// IsMember reports whether the user belongs to the group. The hub consults
// this before relaying any group-addressed frame.
func (r *GroupRepository) IsMember(groupID, userID int64) (bool, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking membership: %w", err)
	}
	return count > 0, nil
}

// MemberIDs returns the user IDs of everyone in the group.
func (r *GroupRepository) MemberIDs(groupID int64) ([]int64, error) {
	rows, err := r.db.Query(
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY joined_at, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying member IDs: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning member ID: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// GroupsForUser is ListForUser under the name the hub uses when it resolves
// which ongoing calls a connecting user should hear about.
func (r *GroupRepository) GroupsForUser(userID int64) ([]*models.Group, error) {
	return r.ListForUser(userID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGroup(row scanner) (*models.Group, error) {
	var g models.Group
	var creator models.User
	var email sql.NullString

	err := row.Scan(
		&g.ID, &g.Name, &g.CreatorID, &g.CreatedAt,
		&creator.ID, &creator.Username, &email, &creator.IsActive,
	)
	if err != nil {
		return nil, err
	}

	creator.Email = nullStringToPtr(email)
	g.Creator = &creator

	return &g, nil
}

func scanMember(row scanner) (*models.GroupMember, error) {
	var m models.GroupMember
	var u models.User
	var email sql.NullString

	err := row.Scan(
		&m.ID, &m.GroupID, &m.UserID, &m.Role, &m.JoinedAt,
		&u.ID, &u.Username, &email, &u.IsActive,
	)
	if err != nil {
		return nil, err
	}

	u.Email = nullStringToPtr(email)
	m.User = &u

	return &m, nil
}
