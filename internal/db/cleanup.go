package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultCleanupInterval = 1 * time.Hour
)

// RetentionService prunes chat history older than the configured retention
// window. A zero retention disables pruning.
type RetentionService struct {
	db        *DB
	retention time.Duration
	interval  time.Duration
}

func NewRetentionService(db *DB, retention time.Duration) *RetentionService {
	return &RetentionService{
		db:        db,
		retention: retention,
		interval:  DefaultCleanupInterval,
	}
}

func (s *RetentionService) Start(ctx context.Context) {
	if s.retention <= 0 {
		return
	}

	slog.Info("starting message retention service", "component", "cleanup", "retention", s.retention, "interval", s.interval)

	s.runCleanup()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping message retention service", "component", "cleanup")
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

func (s *RetentionService) runCleanup() {
	cutoff := time.Now().UTC().Add(-s.retention)

	directDeleted, err := s.deleteBefore("messages", cutoff)
	if err != nil {
		slog.Error("error pruning messages", "component", "cleanup", "error", err)
	} else if directDeleted > 0 {
		slog.Info("pruned old messages", "component", "cleanup", "count", directDeleted)
	}

	groupDeleted, err := s.deleteBefore("group_messages", cutoff)
	if err != nil {
		slog.Error("error pruning group messages", "component", "cleanup", "error", err)
	} else if groupDeleted > 0 {
		slog.Info("pruned old group messages", "component", "cleanup", "count", groupDeleted)
	}
}

func (s *RetentionService) deleteBefore(table string, cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM `+table+` WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", table, err)
	}
	return result.RowsAffected()
}
