// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vector wraps a low-level Provider with the scoped, multi-tenant
// semantics the knowledge-base subsystem needs: injected ownership
// metadata, named search strategies, and a small filter language.
package vector

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Strategy selects the search algorithm used by Store.Search.
type Strategy string

const (
	StrategySimilarity Strategy = "similarity"
	StrategyMMR        Strategy = "mmr"
	StrategyThreshold  Strategy = "threshold"
)

// Filter is the spec's minimal metadata filter language: a bare value is
// an equality match; In(...), i.e. {"in": [...]}, is a set-membership match. Multiple
// keys are an implicit AND.
type Filter map[string]any

// In builds the {"in": [...]} set-membership predicate for a filter key.
func In(values ...any) map[string]any {
	return map[string]any{"in": values}
}

// Document is a single chunk of text to be embedded and stored, or a
// chunk retrieved from the store together with its relevance score.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]any
	Score    float32
}

// Embedder is the narrow embedding dependency a Store needs. Satisfied
// structurally by *embedding.Service.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchParams configures Store.Search.
type SearchParams struct {
	K             int
	Strategy      Strategy
	ScoreThreshold float32
	FetchK        int     // used by StrategyMMR
	Lambda        float32 // diversity parameter in [0,1], used by StrategyMMR
}

// Retriever is a bound search handle: a filter and strategy fixed, a
// query string varying.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Document, error)
}

// Store is the scoped vector collection contract of spec §4.3.
type Store interface {
	// Upsert embeds and writes chunks, injecting {kb_id, doc_id, user_id}
	// into every chunk's metadata first. Returns the assigned chunk ids.
	Upsert(ctx context.Context, chunks []Document, kbID, docID, userID string) ([]string, error)

	// DeleteBy deletes every chunk matching filter. Idempotent: deleting
	// zero matches is success.
	DeleteBy(ctx context.Context, filter Filter) error

	// Search runs a scoped similarity search.
	Search(ctx context.Context, query string, filter Filter, params SearchParams) ([]Document, error)

	// AsRetriever returns a Retriever bound to filter/params.
	AsRetriever(filter Filter, params SearchParams) Retriever
}

type store struct {
	provider   Provider
	collection string
	embedder   Embedder
}

// NewStore builds a Store over a Provider collection, embedding text with
// embedder before every write and query.
func NewStore(provider Provider, collection string, embedder Embedder) Store {
	return &store{provider: provider, collection: collection, embedder: embedder}
}

func (s *store) Upsert(ctx context.Context, chunks []Document, kbID, docID, userID string) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id

		metadata := make(map[string]any, len(c.Metadata)+3)
		for k, v := range c.Metadata {
			metadata[k] = v
		}
		metadata["kb_id"] = kbID
		metadata["doc_id"] = docID
		metadata["user_id"] = userID
		metadata["content"] = c.Content

		if err := s.provider.Upsert(ctx, s.collection, id, vectors[i], metadata); err != nil {
			return nil, fmt.Errorf("upsert chunk %d: %w", i, err)
		}
	}

	return ids, nil
}

func (s *store) DeleteBy(ctx context.Context, filter Filter) error {
	return s.provider.DeleteByFilter(ctx, s.collection, map[string]any(filter))
}

func (s *store) Search(ctx context.Context, query string, filter Filter, params SearchParams) ([]Document, error) {
	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	k := params.K
	if k <= 0 {
		k = 5
	}

	switch params.Strategy {
	case StrategyMMR:
		return s.searchMMR(ctx, queryVector, filter, k, params)
	case StrategyThreshold:
		return s.searchThreshold(ctx, queryVector, filter, k, params.ScoreThreshold)
	default:
		return s.searchSimilarity(ctx, queryVector, filter, k)
	}
}

func (s *store) searchSimilarity(ctx context.Context, queryVector []float32, filter Filter, k int) ([]Document, error) {
	results, err := s.provider.SearchWithFilter(ctx, s.collection, queryVector, k, map[string]any(filter))
	if err != nil {
		return nil, err
	}
	return toDocuments(results), nil
}

func (s *store) searchThreshold(ctx context.Context, queryVector []float32, filter Filter, k int, threshold float32) ([]Document, error) {
	results, err := s.provider.SearchWithFilter(ctx, s.collection, queryVector, k, map[string]any(filter))
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		if r.Score < threshold {
			continue
		}
		docs = append(docs, toDocument(r))
		if len(docs) == k {
			break
		}
	}
	return docs, nil
}

// searchMMR re-ranks a larger candidate pool for diversity: at each step
// it picks the candidate maximizing λ*relevance - (1-λ)*maxSimilarityToSelected.
func (s *store) searchMMR(ctx context.Context, queryVector []float32, filter Filter, k int, params SearchParams) ([]Document, error) {
	fetchK := params.FetchK
	if fetchK <= 0 {
		fetchK = k * 4
	}
	lambda := params.Lambda
	if lambda == 0 {
		lambda = 0.5
	}

	candidates, err := s.provider.SearchWithFilter(ctx, s.collection, queryVector, fetchK, map[string]any(filter))
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	selected := make([]Result, 0, k)
	remaining := append([]Result(nil), candidates...)

	for len(selected) < k && len(remaining) > 0 {
		bestIdx := -1
		var bestScore float32 = -1 << 30

		for i, cand := range remaining {
			maxSim := float32(0)
			for _, sel := range selected {
				if sim := cosineSimilarity(cand.Vector, sel.Vector); sim > maxSim {
					maxSim = sim
				}
			}
			mmrScore := lambda*cand.Score - (1-lambda)*maxSim
			if mmrScore > bestScore {
				bestScore = mmrScore
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return toDocuments(selected), nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (sqrt(normA) * sqrt(normB)))
}

func sqrt(x float64) float64 {
	if x <= 0 {
		return 0
	}
	z := x
	for i := 0; i < 20; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

func toDocuments(results []Result) []Document {
	docs := make([]Document, 0, len(results))
	for _, r := range results {
		docs = append(docs, toDocument(r))
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	return docs
}

func toDocument(r Result) Document {
	return Document{
		ID:       r.ID,
		Content:  r.Content,
		Metadata: r.Metadata,
		Score:    r.Score,
	}
}

type retriever struct {
	store  *store
	filter Filter
	params SearchParams
}

func (r *retriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	return r.store.Search(ctx, query, r.filter, r.params)
}

func (s *store) AsRetriever(filter Filter, params SearchParams) Retriever {
	return &retriever{store: s, filter: filter, params: params}
}
