// Package embedding provides a lazily-constructed, cached-by-model-name
// text embedder, offloading the blocking numeric-kernel call onto a
// bounded worker pool so it never blocks the request-handling goroutine
// scheduler. Grounded on original_source's EmbeddingService (a per-model
// singleton cache with asyncio.to_thread offload) and on the teacher's
// pkg/embedders provider-registry pattern.
package embedding

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Provider embeds text against a single fixed model. Implementations are
// safe for concurrent use.
type Provider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Close() error
}

// Factory constructs a Provider for a given model name, called at most
// once per model by Service.
type Factory func(modelName string) (Provider, error)

// Service is a shared embedder cache keyed by model name. A single KB's
// documents always use the KB's configured model, but different KBs may
// use different models, so the cache holds one Provider per model rather
// than a single global embedder.
type Service struct {
	factory Factory
	sem     *semaphore.Weighted

	mu    sync.Mutex
	cache map[string]Provider
}

// NewService builds a Service. maxConcurrency bounds how many embed calls
// run against the underlying provider(s) at once, across all models.
func NewService(factory Factory, maxConcurrency int) *Service {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Service{
		factory: factory,
		sem:     semaphore.NewWeighted(int64(maxConcurrency)),
		cache:   make(map[string]Provider),
	}
}

// get returns the cached provider for modelName, constructing it via
// Factory on first use. Concurrent callers for the same unseen model
// block on the same construction rather than racing the factory.
func (s *Service) get(modelName string) (Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.cache[modelName]; ok {
		return p, nil
	}

	p, err := s.factory(modelName)
	if err != nil {
		return nil, fmt.Errorf("embedding: construct provider for model %q: %w", modelName, err)
	}
	s.cache[modelName] = p
	return p, nil
}

// EmbedDocuments embeds texts against modelName's provider, bounded by the
// service's worker pool.
func (s *Service) EmbedDocuments(ctx context.Context, modelName string, texts []string) ([][]float32, error) {
	p, err := s.get(modelName)
	if err != nil {
		return nil, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	return p.EmbedDocuments(ctx, texts)
}

// EmbedQuery embeds a single query against modelName's provider, bounded
// by the service's worker pool.
func (s *Service) EmbedQuery(ctx context.Context, modelName string, text string) ([]float32, error) {
	p, err := s.get(modelName)
	if err != nil {
		return nil, err
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	return p.EmbedQuery(ctx, text)
}

// Close closes every cached provider.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, p := range s.cache {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Bind fixes a Service to one model name, producing a value that
// structurally satisfies pkg/vector.Embedder (EmbedDocuments/EmbedQuery
// each take only ctx and text) for a single KB's embedding model.
func (s *Service) Bind(modelName string) *BoundEmbedder {
	return &BoundEmbedder{service: s, modelName: modelName}
}

// BoundEmbedder is a Service pinned to one model name.
type BoundEmbedder struct {
	service   *Service
	modelName string
}

// EmbedDocuments implements pkg/vector.Embedder.
func (b *BoundEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return b.service.EmbedDocuments(ctx, b.modelName, texts)
}

// EmbedQuery implements pkg/vector.Embedder.
func (b *BoundEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return b.service.EmbedQuery(ctx, b.modelName, text)
}
