// Package model defines the core domain entities shared across the
// ingestion, store, and orchestrator packages. These are plain value
// types; persistence concerns live in pkg/store and pkg/vector.
package model

import "time"

// Visibility controls whether a KnowledgeBase's documents are
// retrievable outside its owner.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// DocumentStatus tracks a KBDocument's ingestion lifecycle.
type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentIndexed    DocumentStatus = "indexed"
	DocumentFailed     DocumentStatus = "failed"
)

// User owns knowledge bases, memories, conversations, and usage records.
type User struct {
	ID          string
	Phone       string
	DisplayName string
	Active      bool
	CreatedAt   time.Time
	LastLoginAt time.Time
}

// KnowledgeBase groups documents sharing one embedding model and
// chunking configuration. Visibility is immutable through the
// retrieval path once documents exist; embedding model is fixed for
// the KB's lifetime.
type KnowledgeBase struct {
	ID             string
	OwnerUserID    string
	Name           string
	Description    string
	Visibility     Visibility
	EmbeddingModel string
	ChunkSize      int
	ChunkOverlap   int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// KBDocument is one uploaded file belonging to a KnowledgeBase.
// Lifecycle: created in DocumentProcessing; terminal states are
// DocumentIndexed (ChunkCount > 0) or DocumentFailed (ErrorMsg set).
type KBDocument struct {
	ID         string
	KBID       string
	Title      string
	FileKey    string
	FileType   string
	ByteSize   int64
	Status     DocumentStatus
	ErrorMsg   *string
	ChunkCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LLMUsageRecord is an append-only record of one LLM call's token
// accounting, never mutated after creation.
type LLMUsageRecord struct {
	ID               string
	UserID           string
	Model            string
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
	RequestID        *string
	TraceID          *string
	Metadata         map[string]any
	CreatedAt        time.Time
}

// MemoryEntry is one long-term memory keyed by (Namespace, Key). Same
// (namespace, key) is a logical upsert; Value holds the current
// version.
type MemoryEntry struct {
	Namespace string
	Key       string
	Value     map[string]any
	UpdatedAt time.Time
}

// MemoryNamespace builds the ("memories", user_id) namespace string
// used for a user's long-term memory.
func MemoryNamespace(userID string) string {
	return "memories:" + userID
}
