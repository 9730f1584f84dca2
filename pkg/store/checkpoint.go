package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Checkpoint is one opaque, ordered snapshot of sub-agent state for a
// thread. Version increases monotonically per thread; snapshots are
// compared for equality by identity, never diffed.
type Checkpoint struct {
	ThreadID  string
	Version   int64
	Snapshot  json.RawMessage
	CreatedAt time.Time
}

// PutCheckpoint appends a new snapshot for threadID at the next
// version number.
func (s *Store) PutCheckpoint(ctx context.Context, threadID string, snapshot any) (*Checkpoint, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("store: marshal checkpoint snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin checkpoint tx: %w", err)
	}
	defer tx.Rollback()

	var nextVersion int64
	query := fmt.Sprintf(`SELECT COALESCE(MAX(version), 0) + 1 FROM checkpoints WHERE thread_id = %s`, s.placeholder(1))
	if err := tx.QueryRowContext(ctx, query, threadID).Scan(&nextVersion); err != nil {
		return nil, fmt.Errorf("store: compute next checkpoint version: %w", err)
	}

	now := time.Now()
	insert := fmt.Sprintf(
		`INSERT INTO checkpoints (thread_id, version, snapshot, created_at) VALUES (%s, %s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4),
	)
	if _, err := tx.ExecContext(ctx, insert, threadID, nextVersion, string(payload), now); err != nil {
		return nil, fmt.Errorf("store: insert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit checkpoint tx: %w", err)
	}

	return &Checkpoint{ThreadID: threadID, Version: nextVersion, Snapshot: payload, CreatedAt: now}, nil
}

// GetLatestCheckpoint returns the highest-version snapshot for
// threadID, or nil if the thread has no checkpoints yet.
func (s *Store) GetLatestCheckpoint(ctx context.Context, threadID string) (*Checkpoint, error) {
	query := fmt.Sprintf(
		`SELECT thread_id, version, snapshot, created_at FROM checkpoints WHERE thread_id = %s ORDER BY version DESC LIMIT 1`,
		s.placeholder(1),
	)

	var cp Checkpoint
	var snapshot string
	err := s.db.QueryRowContext(ctx, query, threadID).Scan(&cp.ThreadID, &cp.Version, &snapshot, &cp.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: query latest checkpoint: %w", err)
	}
	cp.Snapshot = json.RawMessage(snapshot)
	return &cp, nil
}

// ListCheckpoints returns every snapshot for threadID, oldest first.
func (s *Store) ListCheckpoints(ctx context.Context, threadID string) ([]Checkpoint, error) {
	query := fmt.Sprintf(
		`SELECT thread_id, version, snapshot, created_at FROM checkpoints WHERE thread_id = %s ORDER BY version ASC`,
		s.placeholder(1),
	)

	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("store: list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		var snapshot string
		if err := rows.Scan(&cp.ThreadID, &cp.Version, &snapshot, &cp.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan checkpoint row: %w", err)
		}
		cp.Snapshot = json.RawMessage(snapshot)
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate checkpoints: %w", err)
	}
	return out, nil
}
