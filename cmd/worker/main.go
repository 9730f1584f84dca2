// Command worker runs the ingestion pipeline as a standalone process,
// separate from cmd/server, the same way original_source's worker
// (worker/tasks.py, worker/celery_app.py) runs as its own Celery worker
// process rather than inside the FastAPI app. It has no message broker
// in its dependency stack, so it polls the store for documents sitting
// in DocumentProcessing status and tracks in-flight document ids in
// memory to avoid submitting the same document twice between polls.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/duhu110/axiom/pkg/config"
	"github.com/duhu110/axiom/pkg/embedding"
	"github.com/duhu110/axiom/pkg/ingestion"
	"github.com/duhu110/axiom/pkg/logger"
	"github.com/duhu110/axiom/pkg/model"
	"github.com/duhu110/axiom/pkg/store"
	"github.com/duhu110/axiom/pkg/vector"
)

// pollInterval bounds how often the worker checks for newly-created
// documents awaiting ingestion.
const pollInterval = 5 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "log level:", err)
		os.Exit(1)
	}
	logger.Init(level, os.Stdout, cfg.Log.Format)
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, store.Dialect(cfg.Store.Driver), cfg.Store.DSN)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	embedFactory := embedding.NewOpenAIFactory(embedding.OpenAIConfig{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
	})
	embedSvc := embedding.NewService(embedFactory, cfg.Embedding.MaxConcurrency)
	defer embedSvc.Close()

	vectorProvider, err := vector.NewProvider(&cfg.Vector)
	if err != nil {
		log.Error("build vector provider", "error", err)
		os.Exit(1)
	}

	blobRoot := os.Getenv("BLOB_STORE_DIR")
	if blobRoot == "" {
		blobRoot = "./blobs"
	}

	worker := &ingestion.Worker{
		Docs:  db,
		KBs:   db,
		Blobs: localBlobStore{root: blobRoot},
		Stores: func(kb *model.KnowledgeBase) (vector.Store, error) {
			return vector.NewStore(vectorProvider, "documents", embedSvc.Bind(kb.EmbeddingModel)), nil
		},
	}
	pool := ingestion.NewPool(worker, cfg.Ingestion.Concurrency)

	jobs := make(chan ingestion.Job)
	var inFlight sync.Map

	poolErrCh := make(chan error, 1)
	go func() {
		poolErrCh <- pool.Run(ctx, jobs)
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	log.Info("ingestion worker starting", "poll_interval", pollInterval, "concurrency", cfg.Ingestion.Concurrency)

	for {
		select {
		case <-ctx.Done():
			if err := <-poolErrCh; err != nil {
				log.Error("ingestion pool stopped", "error", err)
			}
			return
		case err := <-poolErrCh:
			if err != nil {
				log.Error("ingestion pool failed", "error", err)
				os.Exit(1)
			}
			return
		case <-ticker.C:
			pending, err := db.ListDocumentsByStatus(ctx, model.DocumentProcessing)
			if err != nil {
				log.Error("poll pending documents", "error", err)
				continue
			}
			for _, doc := range pending {
				if _, already := inFlight.LoadOrStore(doc.ID, struct{}{}); already {
					continue
				}
				docID := doc.ID
				go func() {
					select {
					case jobs <- ingestion.Job{DocID: docID}:
					case <-ctx.Done():
					}
				}()
			}
			// Release completed documents so a future crash-recovered job
			// for the same id can be picked up again if it regresses to
			// DocumentProcessing.
			inFlight.Range(func(key, _ any) bool {
				docID := key.(string)
				d, err := db.GetDocument(ctx, docID)
				if err != nil || d == nil || d.Status != model.DocumentProcessing {
					inFlight.Delete(docID)
				}
				return true
			})
		}
	}
}

// localBlobStore reads previously-uploaded document bytes from a local
// directory keyed by file_key; object storage proper is out of scope,
// this is the minimal concrete BlobStore a standalone worker needs to
// actually run.
type localBlobStore struct {
	root string
}

func (l localBlobStore) Download(ctx context.Context, key string) ([]byte, error) {
	if strings.Contains(key, "..") {
		return nil, fmt.Errorf("localBlobStore: invalid key %q", key)
	}
	return os.ReadFile(filepath.Join(l.root, key))
}
