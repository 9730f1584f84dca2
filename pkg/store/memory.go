package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/duhu110/axiom/pkg/model"
)

// PutMemory upserts value at (namespace, key), last-writer-wins: a
// second write to the same key replaces the first's value entirely.
func (s *Store) PutMemory(ctx context.Context, namespace, key string, value map[string]any) (*model.MemoryEntry, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("store: marshal memory value: %w", err)
	}
	now := time.Now()

	var query string
	switch s.dialect {
	case Postgres:
		query = `
INSERT INTO memory_entries (namespace, mem_key, value, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (namespace, mem_key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
`
	case MySQL:
		query = `
INSERT INTO memory_entries (namespace, mem_key, value, updated_at)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)
`
	default: // sqlite3
		query = `
INSERT INTO memory_entries (namespace, mem_key, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (namespace, mem_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`
	}

	if _, err := s.db.ExecContext(ctx, query, namespace, key, string(payload), now); err != nil {
		return nil, fmt.Errorf("store: upsert memory entry: %w", err)
	}

	return &model.MemoryEntry{Namespace: namespace, Key: key, Value: value, UpdatedAt: now}, nil
}

// GetMemory returns the entry at (namespace, key), or nil if absent.
func (s *Store) GetMemory(ctx context.Context, namespace, key string) (*model.MemoryEntry, error) {
	query := fmt.Sprintf(
		`SELECT value, updated_at FROM memory_entries WHERE namespace = %s AND mem_key = %s`,
		s.placeholder(1), s.placeholder(2),
	)

	var value string
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx, query, namespace, key).Scan(&value, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: query memory entry: %w", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(value), &decoded); err != nil {
		return nil, fmt.Errorf("store: unmarshal memory value: %w", err)
	}
	return &model.MemoryEntry{Namespace: namespace, Key: key, Value: decoded, UpdatedAt: updatedAt}, nil
}

// SearchMemory returns up to limit entries in namespace, most recently
// updated first.
func (s *Store) SearchMemory(ctx context.Context, namespace string, limit int) ([]model.MemoryEntry, error) {
	query := fmt.Sprintf(
		`SELECT mem_key, value, updated_at FROM memory_entries WHERE namespace = %s ORDER BY updated_at DESC LIMIT %s`,
		s.placeholder(1), s.placeholder(2),
	)

	rows, err := s.db.QueryContext(ctx, query, namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search memory entries: %w", err)
	}
	defer rows.Close()

	var out []model.MemoryEntry
	for rows.Next() {
		var key, value string
		var updatedAt time.Time
		if err := rows.Scan(&key, &value, &updatedAt); err != nil {
			return nil, fmt.Errorf("store: scan memory row: %w", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			return nil, fmt.Errorf("store: unmarshal memory value: %w", err)
		}
		out = append(out, model.MemoryEntry{Namespace: namespace, Key: key, Value: decoded, UpdatedAt: updatedAt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate memory rows: %w", err)
	}
	return out, nil
}
