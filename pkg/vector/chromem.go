// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemProvider implements Provider using chromem-go for embedded vector storage.
//
// This is the recommended provider for zero-config deployments as it requires
// no external services. It stores vectors in memory with optional file persistence.
//
// Features:
//   - Pure Go, no external dependencies
//   - Optional file persistence (gzip compressed)
//   - Cosine similarity search
//   - Metadata filtering
//
// Limitations:
//   - Single-process only (no distributed search)
//   - Memory-bound (all vectors in RAM)
//   - No hybrid search support
//
// For production at scale, consider Qdrant or other external providers.
type ChromemProvider struct {
	db          *chromem.DB
	persistPath string
	compress    bool
	mu          sync.RWMutex

	// collections caches collection references for performance
	collections map[string]*chromem.Collection

	// embeddingFunc is handed to chromem-go but never called: every vector
	// arrives pre-computed from the embedder package
	embeddingFunc chromem.EmbeddingFunc
}

// ChromemConfig configures the chromem provider.
type ChromemConfig struct {
	// PersistPath for file persistence (optional).
	// If empty, vectors are stored in memory only.
	// Directory will be created if it doesn't exist.
	PersistPath string `yaml:"persist_path,omitempty"`

	// Compress enables gzip compression for persistence.
	// Reduces file size but increases CPU usage.
	Compress bool `yaml:"compress,omitempty"`
}

// NewChromemProvider creates a new chromem-based vector provider.
func NewChromemProvider(cfg ChromemConfig) (*ChromemProvider, error) {
	var db *chromem.DB
	var err error

	if cfg.PersistPath != "" {
		if err := os.MkdirAll(cfg.PersistPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}

		// Try to load existing database
		dbPath := cfg.PersistPath + "/vectors.gob"
		if cfg.Compress {
			dbPath += ".gz"
		}

		if _, statErr := os.Stat(dbPath); statErr == nil {
			db, err = chromem.NewPersistentDB(dbPath, cfg.Compress)
			if err != nil {
				slog.Warn("Failed to load existing vector database, creating new",
					"path", dbPath,
					"error", err)
				db = chromem.NewDB()
			} else {
				slog.Info("Loaded vector database from file", "path", dbPath)
			}
		} else {
			db = chromem.NewDB()
			slog.Info("Created new vector database", "path", dbPath)
		}
	} else {
		db = chromem.NewDB()
		slog.Info("Created in-memory vector database (no persistence)")
	}

	// Placeholder embedding function that only returns an error - we receive pre-computed vectors
	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		// This should not be called when using pre-computed vectors
		return nil, fmt.Errorf("embedding function called but vectors should be pre-computed")
	}

	return &ChromemProvider{
		db:            db,
		persistPath:   cfg.PersistPath,
		compress:      cfg.Compress,
		collections:   make(map[string]*chromem.Collection),
		embeddingFunc: identityEmbed,
	}, nil
}

// getCollection gets or creates a collection.
func (p *ChromemProvider) getCollection(ctx context.Context, name string) (*chromem.Collection, error) {
	p.mu.RLock()
	if col, ok := p.collections[name]; ok {
		p.mu.RUnlock()
		return col, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if col, ok := p.collections[name]; ok {
		return col, nil
	}

	// Create or get collection
	col, err := p.db.GetOrCreateCollection(name, nil, p.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", name, err)
	}

	p.collections[name] = col
	return col, nil
}

// Upsert adds or updates a document with its vector embedding.
func (p *ChromemProvider) Upsert(ctx context.Context, collection string, id string, vector []float32, metadata map[string]any) error {
	col, err := p.getCollection(ctx, collection)
	if err != nil {
		return err
	}

	// Convert metadata to string map (chromem requirement)
	strMetadata := make(map[string]string, len(metadata))
	for k, v := range metadata {
		strMetadata[k] = fmt.Sprint(v)
	}

	// Extract content from metadata if present
	content := ""
	if c, ok := metadata["content"].(string); ok {
		content = c
	}

	doc := chromem.Document{
		ID:        id,
		Content:   content,
		Metadata:  strMetadata,
		Embedding: vector,
	}

	// AddDocument with pre-computed embedding
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	// Persist if enabled
	if err := p.persist(); err != nil {
		slog.Warn("Failed to persist after upsert", "error", err)
	}

	return nil
}

// Search finds the most similar vectors in a collection.
func (p *ChromemProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return p.SearchWithFilter(ctx, collection, vector, topK, nil)
}

// SearchWithFilter combines vector similarity with metadata filtering.
func (p *ChromemProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	col, err := p.getCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	// chromem-go's native Where only supports scalar equality; set-membership
	// ({"in": [...]}) filters are applied client-side after the query since
	// there is no server-side $in in this backend.
	whereFilter, inFilters := splitChromemFilter(filter)

	// Over-fetch when a client-side filter remains, since chromem already
	// applied the scalar part but the in-filter may drop matches.
	fetchK := topK
	if len(inFilters) > 0 {
		fetchK = topK * 4
		if fetchK < 50 {
			fetchK = 50
		}
	}

	// chromem-go rejects a result count larger than the collection.
	if n := col.Count(); fetchK > n {
		fetchK = n
	}
	if fetchK == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, vector, fetchK, whereFilter, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		metadata := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = v
		}

		if !matchesInFilters(metadata, inFilters) {
			continue
		}

		out = append(out, Result{
			ID:       r.ID,
			Score:    r.Similarity,
			Content:  r.Content,
			Metadata: metadata,
			Vector:   r.Embedding,
		})

		if len(out) == topK {
			break
		}
	}

	return out, nil
}

// splitChromemFilter separates a spec-language filter into the subset
// chromem-go's native equality Where can apply, and the subset that must
// be applied client-side ({field: {in: [...]}}).
func splitChromemFilter(filter map[string]any) (where map[string]string, inFilters map[string][]string) {
	for k, v := range filter {
		if sub, ok := v.(map[string]any); ok {
			if in, hasIn := sub["in"]; hasIn {
				if inFilters == nil {
					inFilters = make(map[string][]string)
				}
				if values, ok := in.([]any); ok {
					for _, item := range values {
						inFilters[k] = append(inFilters[k], fmt.Sprint(item))
					}
				}
				continue
			}
			continue
		}
		if where == nil {
			where = make(map[string]string)
		}
		where[k] = fmt.Sprint(v)
	}
	return where, inFilters
}

func matchesInFilters(metadata map[string]any, inFilters map[string][]string) bool {
	for field, allowed := range inFilters {
		val := fmt.Sprint(metadata[field])
		found := false
		for _, a := range allowed {
			if a == val {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Delete removes a document from a collection by ID.
func (p *ChromemProvider) Delete(ctx context.Context, collection string, id string) error {
	col, err := p.getCollection(ctx, collection)
	if err != nil {
		return err
	}

	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if err := p.persist(); err != nil {
		slog.Warn("Failed to persist after delete", "error", err)
	}

	return nil
}

// DeleteByFilter removes all documents matching the filter.
func (p *ChromemProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	col, err := p.getCollection(ctx, collection)
	if err != nil {
		return err
	}

	where, inFilters := splitChromemFilter(filter)
	if len(inFilters) == 0 {
		if err := col.Delete(ctx, where, nil); err != nil {
			return fmt.Errorf("failed to delete by filter: %w", err)
		}
	} else {
		// No native $in delete in chromem-go: delete once per equality
		// combination of (static where) x (each allowed in-value per field).
		for field, values := range inFilters {
			for _, v := range values {
				combined := make(map[string]string, len(where)+1)
				for k, wv := range where {
					combined[k] = wv
				}
				combined[field] = v
				if err := col.Delete(ctx, combined, nil); err != nil {
					return fmt.Errorf("failed to delete by filter: %w", err)
				}
			}
		}
	}

	if err := p.persist(); err != nil {
		slog.Warn("Failed to persist after delete", "error", err)
	}

	return nil
}

// CreateCollection creates the collection if it does not exist yet.
// vectorDimension is not used.
func (p *ChromemProvider) CreateCollection(ctx context.Context, collection string, vectorDimension int) error {
	_, err := p.getCollection(ctx, collection)
	return err
}

// DeleteCollection removes a collection and all its documents.
func (p *ChromemProvider) DeleteCollection(ctx context.Context, collection string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}

	delete(p.collections, collection)

	if err := p.persist(); err != nil {
		slog.Warn("Failed to persist after collection delete", "error", err)
	}

	return nil
}

// Name returns the provider name.
func (p *ChromemProvider) Name() string {
	return "chromem"
}

// Close persists the database and releases resources.
func (p *ChromemProvider) Close() error {
	return p.persist()
}

// persist saves the database to disk if persistence is enabled.
func (p *ChromemProvider) persist() error {
	if p.persistPath == "" {
		return nil
	}

	dbPath := p.persistPath + "/vectors.gob"
	if p.compress {
		dbPath += ".gz"
	}

	//nolint:staticcheck // Using deprecated function for compatibility
	if err := p.db.Export(dbPath, p.compress, ""); err != nil {
		return fmt.Errorf("failed to persist database: %w", err)
	}

	return nil
}

// Ensure ChromemProvider implements Provider.
var _ Provider = (*ChromemProvider)(nil)
