// Package ingestion runs the asynchronous document-processing pipeline:
// download -> load -> split -> embed -> upsert, grounded on
// original_source/.../worker/tasks.py's _process_document_async state
// machine and celery_app.py's timeout/retry constants, rebuilt as a Go
// worker pool over golang.org/x/sync/errgroup instead of Celery tasks.
package ingestion

import (
	"context"
	"time"

	"github.com/duhu110/axiom/pkg/errs"
	"github.com/duhu110/axiom/pkg/loader"
	"github.com/duhu110/axiom/pkg/model"
	"github.com/duhu110/axiom/pkg/splitter"
	"github.com/duhu110/axiom/pkg/vector"
)

// Hard and soft per-job timeouts, matching celery_app.py's
// task_time_limit=600 / task_soft_time_limit=540 exactly.
const (
	HardTimeout = 10 * time.Minute
	SoftTimeout = 9 * time.Minute
)

// MaxAttempts matches tasks.py's retry_kwargs max_retries=3 (so up to
// 4 total attempts: the original plus 3 retries).
const MaxAttempts = 3

// truncatedErrorLen bounds the stored error message length.
const truncatedErrorLen = 500

// BlobStore downloads previously-uploaded document bytes. Object
// storage itself is out of scope; only this narrow contract is
// consumed, the same way original_source's worker calls
// get_rustfs_client().download(doc.file_key) against an external client.
type BlobStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// DocumentRepo reads and updates KBDocument rows. Relational storage
// and migrations for this table are out of scope (an external
// collaborator), so only the narrow operations the worker needs are
// named here.
type DocumentRepo interface {
	Get(ctx context.Context, docID string) (*model.KBDocument, error)
	UpdateStatus(ctx context.Context, docID string, status model.DocumentStatus, chunkCount int, errMsg *string) error
}

// KBRepo reads KnowledgeBase rows, the chunking/embedding
// configuration a document's owning KB carries.
type KBRepo interface {
	Get(ctx context.Context, kbID string) (*model.KnowledgeBase, error)
}

// StoreFactory returns the vector.Store scoped to a KB's embedding
// model, e.g. a Store built over embedding.Service.Bind(kb.EmbeddingModel).
type StoreFactory func(kb *model.KnowledgeBase) (vector.Store, error)

// Job is one (doc_id) unit of work enqueued after an upload completes.
type Job struct {
	DocID string
}

// Worker wires the collaborators needed to process one Job end to end.
type Worker struct {
	Docs   DocumentRepo
	KBs    KBRepo
	Blobs  BlobStore
	Stores StoreFactory
}

// Process runs the full pipeline for one job, retrying transient
// failures up to MaxAttempts times with exponential backoff, and
// deleting any prior chunks for the document before each retry's
// upsert so at-least-once delivery stays idempotent in the vector
// store (spec.md §9 design note: delete-before-upsert-on-retry).
func (w *Worker) Process(ctx context.Context, job Job) error {
	var lastErr error
	for attempt := 0; attempt <= MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Minute
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := w.attempt(ctx, job, attempt > 0)
		if err == nil {
			return nil
		}
		lastErr = err
		if errs.KindOf(err) != errs.UpstreamTransient {
			break
		}
	}

	msg := lastErr.Error()
	if len(msg) > truncatedErrorLen {
		msg = msg[:truncatedErrorLen]
	}
	_ = w.Docs.UpdateStatus(context.Background(), job.DocID, model.DocumentFailed, 0, &msg)
	return lastErr
}

func (w *Worker) attempt(parent context.Context, job Job, isRetry bool) error {
	hardCtx, cancel := context.WithTimeout(parent, HardTimeout)
	defer cancel()

	// softCtx bounds the load+split phase so a stuck parse still leaves
	// time to fail cleanly before the hard timeout tears the job down
	// mid-upsert; embed+upsert runs under hardCtx directly.
	softCtx, softCancel := context.WithTimeout(hardCtx, SoftTimeout)
	defer softCancel()

	doc, err := w.Docs.Get(hardCtx, job.DocID)
	if err != nil {
		return errs.New(errs.NotFound, "document not found", err)
	}

	kb, err := w.KBs.Get(hardCtx, doc.KBID)
	if err != nil {
		return errs.New(errs.NotFound, "knowledge base not found", err)
	}

	if err := w.Docs.UpdateStatus(hardCtx, doc.ID, model.DocumentProcessing, 0, nil); err != nil {
		return err
	}

	content, err := w.Blobs.Download(hardCtx, doc.FileKey)
	if err != nil {
		return errs.New(errs.UpstreamTransient, "download document blob", err)
	}

	docs, err := loader.Load(softCtx, content, doc.FileType, map[string]any{
		"title":     doc.Title,
		"file_type": doc.FileType,
	})
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return errs.New(errs.Validation, "no content extracted from document", nil)
	}

	cfg := splitter.Config{ChunkSize: kb.ChunkSize, ChunkOverlap: kb.ChunkOverlap}
	chunks, err := splitter.Split(docs, doc.FileType, cfg)
	if err != nil {
		return err
	}

	store, err := w.Stores(kb)
	if err != nil {
		return errs.New(errs.Internal, "build vector store for kb", err)
	}

	if isRetry {
		if err := store.DeleteBy(hardCtx, vector.Filter{"doc_id": doc.ID}); err != nil {
			return errs.New(errs.UpstreamTransient, "delete existing chunks before retry", err)
		}
	}

	vecDocs := make([]vector.Document, len(chunks))
	for i, c := range chunks {
		vecDocs[i] = vector.Document{Content: c.Content, Metadata: c.Metadata}
	}

	ids, err := store.Upsert(hardCtx, vecDocs, kb.ID, doc.ID, kb.OwnerUserID)
	if err != nil {
		return errs.New(errs.UpstreamTransient, "upsert chunks", err)
	}

	return w.Docs.UpdateStatus(hardCtx, doc.ID, model.DocumentIndexed, len(ids), nil)
}
