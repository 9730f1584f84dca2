// Package store persists per-thread conversation checkpoints, per-user
// long-term memory entries, knowledge-base/document metadata, and LLM
// usage records over database/sql, grounded on the teacher's
// pkg/memory/session_service_sql.go dialect-switch DDL idiom
// (sessions/session_messages tables, protojson-serialized rows). This
// package's snapshot and memory values are plain Go structs, so
// encoding/json replaces protojson throughout.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect names the SQL backend in use, mirroring the teacher's
// SQLSessionService.dialect switch.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite3"
)

// Store is the shared SQL-backed checkpoint and memory store.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open validates the dialect, opens the connection, pings it, and
// initializes every table's schema, mirroring
// NewSQLSessionServiceFromConfig's construction sequence.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	switch dialect {
	case Postgres, MySQL, SQLite:
	default:
		return nil, fmt.Errorf("store: unsupported dialect %q (supported: postgres, mysql, sqlite3)", dialect)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return s, nil
}

// placeholder returns the dialect-appropriate bind parameter for
// position n (1-indexed), matching the teacher's if-postgres-then-$N
// pattern.
func (s *Store) placeholder(n int) string {
	if s.dialect == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *Store) initSchema(ctx context.Context) error {
	checkpointsSQL := `
CREATE TABLE IF NOT EXISTS checkpoints (
    thread_id VARCHAR(255) NOT NULL,
    version BIGINT NOT NULL,
    snapshot TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (thread_id, version)
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_thread_id ON checkpoints(thread_id);
`

	memorySQL := `
CREATE TABLE IF NOT EXISTS memory_entries (
    namespace VARCHAR(255) NOT NULL,
    mem_key VARCHAR(255) NOT NULL,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (namespace, mem_key)
);

CREATE INDEX IF NOT EXISTS idx_memory_namespace_updated ON memory_entries(namespace, updated_at);
`

	kbSQL := `
CREATE TABLE IF NOT EXISTS knowledge_bases (
    id VARCHAR(64) PRIMARY KEY,
    owner_user_id VARCHAR(255) NOT NULL,
    name VARCHAR(255) NOT NULL,
    description TEXT,
    visibility VARCHAR(16) NOT NULL,
    embedding_model VARCHAR(100) NOT NULL,
    chunk_size INTEGER NOT NULL,
    chunk_overlap INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_kb_owner ON knowledge_bases(owner_user_id);
CREATE INDEX IF NOT EXISTS idx_kb_visibility ON knowledge_bases(visibility);

CREATE TABLE IF NOT EXISTS kb_documents (
    id VARCHAR(64) PRIMARY KEY,
    kb_id VARCHAR(64) NOT NULL,
    title VARCHAR(255) NOT NULL,
    file_key VARCHAR(512) NOT NULL,
    file_type VARCHAR(16) NOT NULL,
    byte_size BIGINT NOT NULL,
    status VARCHAR(16) NOT NULL,
    error_msg TEXT,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_kb_documents_kb_id ON kb_documents(kb_id);
`

	usageSQL := `
CREATE TABLE IF NOT EXISTS llm_usage (
    id VARCHAR(64) PRIMARY KEY,
    user_id VARCHAR(255) NOT NULL,
    model_name VARCHAR(100) NOT NULL,
    prompt_tokens INTEGER,
    completion_tokens INTEGER,
    total_tokens INTEGER,
    request_id VARCHAR(128),
    trace_id VARCHAR(128),
    metadata TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_llm_usage_user_created ON llm_usage(user_id, created_at);
`

	if _, err := s.db.ExecContext(ctx, checkpointsSQL); err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, memorySQL); err != nil {
		return fmt.Errorf("create memory_entries table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, kbSQL); err != nil {
		return fmt.Errorf("create knowledge_bases/kb_documents tables: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, usageSQL); err != nil {
		return fmt.Errorf("create llm_usage table: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
