package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/duhu110/axiom/pkg/model"
)

// CreateKB inserts a new KnowledgeBase row, assigning an id and
// timestamps if unset.
func (s *Store) CreateKB(ctx context.Context, kb model.KnowledgeBase) (*model.KnowledgeBase, error) {
	if kb.ID == "" {
		kb.ID = uuid.NewString()
	}
	now := time.Now()
	if kb.CreatedAt.IsZero() {
		kb.CreatedAt = now
	}
	kb.UpdatedAt = now

	query := fmt.Sprintf(`
INSERT INTO knowledge_bases (id, owner_user_id, name, description, visibility, embedding_model, chunk_size, chunk_overlap, created_at, updated_at)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
`, s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5),
		s.placeholder(6), s.placeholder(7), s.placeholder(8), s.placeholder(9), s.placeholder(10))

	_, err := s.db.ExecContext(ctx, query,
		kb.ID, kb.OwnerUserID, kb.Name, kb.Description, string(kb.Visibility),
		kb.EmbeddingModel, kb.ChunkSize, kb.ChunkOverlap, kb.CreatedAt, kb.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store: insert knowledge base: %w", err)
	}
	return &kb, nil
}

// GetKB returns the KnowledgeBase with kbID, satisfying
// pkg/ingestion.KBRepo.
func (s *Store) GetKB(ctx context.Context, kbID string) (*model.KnowledgeBase, error) {
	query := fmt.Sprintf(`
SELECT id, owner_user_id, name, description, visibility, embedding_model, chunk_size, chunk_overlap, created_at, updated_at
FROM knowledge_bases WHERE id = %s`, s.placeholder(1))

	var kb model.KnowledgeBase
	var visibility string
	err := s.db.QueryRowContext(ctx, query, kbID).Scan(
		&kb.ID, &kb.OwnerUserID, &kb.Name, &kb.Description, &visibility,
		&kb.EmbeddingModel, &kb.ChunkSize, &kb.ChunkOverlap, &kb.CreatedAt, &kb.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: query knowledge base: %w", err)
	}
	kb.Visibility = model.Visibility(visibility)
	return &kb, nil
}

// AccessibleKBIDs returns the de-duplicated set of KB ids userID may
// search when no explicit kb_id scope was given: every KB userID owns,
// union every public KB (Open Question decision: union with
// de-duplication, so an owned-and-public KB counts once).
func (s *Store) AccessibleKBIDs(ctx context.Context, userID string) ([]string, error) {
	query := fmt.Sprintf(`
SELECT DISTINCT id FROM knowledge_bases WHERE owner_user_id = %s OR visibility = %s`,
		s.placeholder(1), s.placeholder(2))

	rows, err := s.db.QueryContext(ctx, query, userID, string(model.VisibilityPublic))
	if err != nil {
		return nil, fmt.Errorf("store: query accessible kb ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan kb id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate accessible kb ids: %w", err)
	}
	return ids, nil
}

// CreateDocument inserts a new KBDocument row in DocumentProcessing
// status.
func (s *Store) CreateDocument(ctx context.Context, doc model.KBDocument) (*model.KBDocument, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = model.DocumentProcessing
	}
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	query := fmt.Sprintf(`
INSERT INTO kb_documents (id, kb_id, title, file_key, file_type, byte_size, status, error_msg, chunk_count, created_at, updated_at)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
`, s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5),
		s.placeholder(6), s.placeholder(7), s.placeholder(8), s.placeholder(9), s.placeholder(10), s.placeholder(11))

	_, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.KBID, doc.Title, doc.FileKey, doc.FileType, doc.ByteSize,
		string(doc.Status), nullableString(doc.ErrorMsg), doc.ChunkCount, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("store: insert kb document: %w", err)
	}
	return &doc, nil
}

// GetDocument returns the KBDocument with docID, satisfying
// pkg/ingestion.DocumentRepo.
func (s *Store) GetDocument(ctx context.Context, docID string) (*model.KBDocument, error) {
	query := fmt.Sprintf(`
SELECT id, kb_id, title, file_key, file_type, byte_size, status, error_msg, chunk_count, created_at, updated_at
FROM kb_documents WHERE id = %s`, s.placeholder(1))

	var doc model.KBDocument
	var status string
	var errMsg sql.NullString
	err := s.db.QueryRowContext(ctx, query, docID).Scan(
		&doc.ID, &doc.KBID, &doc.Title, &doc.FileKey, &doc.FileType, &doc.ByteSize,
		&status, &errMsg, &doc.ChunkCount, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: query kb document: %w", err)
	}
	doc.Status = model.DocumentStatus(status)
	if errMsg.Valid {
		doc.ErrorMsg = &errMsg.String
	}
	return &doc, nil
}

// UpdateDocumentStatus transitions a KBDocument to a terminal or
// intermediate status, satisfying pkg/ingestion.DocumentRepo.
func (s *Store) UpdateDocumentStatus(ctx context.Context, docID string, status model.DocumentStatus, chunkCount int, errMsg *string) error {
	query := fmt.Sprintf(`
UPDATE kb_documents SET status = %s, chunk_count = %s, error_msg = %s, updated_at = %s WHERE id = %s`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5))

	_, err := s.db.ExecContext(ctx, query, string(status), chunkCount, nullableString(errMsg), time.Now(), docID)
	if err != nil {
		return fmt.Errorf("store: update kb document status: %w", err)
	}
	return nil
}

// ListDocumentsByStatus returns every document in the given status
// across every knowledge base, oldest first; cmd/worker's poll loop
// uses this to find newly-created (or crash-abandoned) processing jobs
// without a separate broker dependency.
func (s *Store) ListDocumentsByStatus(ctx context.Context, status model.DocumentStatus) ([]model.KBDocument, error) {
	query := fmt.Sprintf(`
SELECT id, kb_id, title, file_key, file_type, byte_size, status, error_msg, chunk_count, created_at, updated_at
FROM kb_documents WHERE status = %s ORDER BY created_at ASC`, s.placeholder(1))

	rows, err := s.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("store: list documents by status: %w", err)
	}
	defer rows.Close()

	var out []model.KBDocument
	for rows.Next() {
		var doc model.KBDocument
		var st string
		var errMsg sql.NullString
		if err := rows.Scan(&doc.ID, &doc.KBID, &doc.Title, &doc.FileKey, &doc.FileType, &doc.ByteSize,
			&st, &errMsg, &doc.ChunkCount, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan kb document row: %w", err)
		}
		doc.Status = model.DocumentStatus(st)
		if errMsg.Valid {
			doc.ErrorMsg = &errMsg.String
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate documents by status: %w", err)
	}
	return out, nil
}

// ListDocumentsByKB returns every document belonging to kbID, oldest
// first.
func (s *Store) ListDocumentsByKB(ctx context.Context, kbID string) ([]model.KBDocument, error) {
	query := fmt.Sprintf(`
SELECT id, kb_id, title, file_key, file_type, byte_size, status, error_msg, chunk_count, created_at, updated_at
FROM kb_documents WHERE kb_id = %s ORDER BY created_at ASC`, s.placeholder(1))

	rows, err := s.db.QueryContext(ctx, query, kbID)
	if err != nil {
		return nil, fmt.Errorf("store: list kb documents: %w", err)
	}
	defer rows.Close()

	var out []model.KBDocument
	for rows.Next() {
		var doc model.KBDocument
		var status string
		var errMsg sql.NullString
		if err := rows.Scan(&doc.ID, &doc.KBID, &doc.Title, &doc.FileKey, &doc.FileType, &doc.ByteSize,
			&status, &errMsg, &doc.ChunkCount, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan kb document row: %w", err)
		}
		doc.Status = model.DocumentStatus(status)
		if errMsg.Valid {
			doc.ErrorMsg = &errMsg.String
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate kb documents: %w", err)
	}
	return out, nil
}
