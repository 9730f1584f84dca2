package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns a fixed-size vector derived deterministically from
// the text length, enough to exercise Store without a real model.
type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vec(t)
	}
	return out, nil
}

func (f fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vec(text), nil
}

func (f fakeEmbedder) vec(text string) []float32 {
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = float32((len(text) + i) % 7)
	}
	return v
}

func TestStoreUpsertInjectsMetadata(t *testing.T) {
	provider, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)
	s := NewStore(provider, "test-collection", fakeEmbedder{dim: 4})

	ids, err := s.Upsert(context.Background(), []Document{
		{Content: "Cats are mammals", Metadata: map[string]any{"page": 1}},
	}, "kb-1", "doc-1", "user-1")
	require.NoError(t, err)
	require.Len(t, ids, 1)

	docs, err := s.Search(context.Background(), "cats", Filter{"kb_id": "kb-1"}, SearchParams{K: 5})
	require.NoError(t, err)
	require.NotEmpty(t, docs)
	assert.Equal(t, "kb-1", docs[0].Metadata["kb_id"])
	assert.Equal(t, "doc-1", docs[0].Metadata["doc_id"])
}

func TestStoreDeleteByIsIdempotent(t *testing.T) {
	provider, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)
	s := NewStore(provider, "test-collection-2", fakeEmbedder{dim: 4})

	err = s.DeleteBy(context.Background(), Filter{"doc_id": "does-not-exist"})
	assert.NoError(t, err)
}

func TestStoreSearchScopedByKBFilter(t *testing.T) {
	provider, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)
	s := NewStore(provider, "test-collection-3", fakeEmbedder{dim: 4})

	_, err = s.Upsert(context.Background(), []Document{{Content: "Birds can fly"}}, "k1", "d1", "u1")
	require.NoError(t, err)
	_, err = s.Upsert(context.Background(), []Document{{Content: "Water boils at 100 C"}}, "k2", "d2", "u2")
	require.NoError(t, err)

	docs, err := s.Search(context.Background(), "birds", Filter{"kb_id": In("k1", "k3")}, SearchParams{K: 5})
	require.NoError(t, err)
	for _, d := range docs {
		assert.NotEqual(t, "k2", d.Metadata["kb_id"])
	}
}
