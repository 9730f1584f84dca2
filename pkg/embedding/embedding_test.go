package embedding_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duhu110/axiom/pkg/embedding"
)

func TestOpenAIProvider_EmbedDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data": [
			{"index": 0, "embedding": [0.1, 0.2]},
			{"index": 1, "embedding": [0.3, 0.4]}
		]}`)
	}))
	defer server.Close()

	factory := embedding.NewOpenAIFactory(embedding.OpenAIConfig{BaseURL: server.URL, APIKey: "k"})
	svc := embedding.NewService(factory, 2)

	vectors, err := svc.EmbedDocuments(context.Background(), "bge-small-zh-v1.5", []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float32{0.3, 0.4}, vectors[1])
}

func TestService_CachesProviderPerModel(t *testing.T) {
	var constructCount int32
	factory := func(modelName string) (embedding.Provider, error) {
		atomic.AddInt32(&constructCount, 1)
		return &fakeProvider{}, nil
	}
	svc := embedding.NewService(factory, 4)

	_, err := svc.EmbedQuery(context.Background(), "model-a", "hi")
	require.NoError(t, err)
	_, err = svc.EmbedQuery(context.Background(), "model-a", "again")
	require.NoError(t, err)
	_, err = svc.EmbedQuery(context.Background(), "model-b", "hi")
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&constructCount))
}

func TestService_ConcurrentCallsForUnseenModelDoNotRaceFactory(t *testing.T) {
	var constructCount int32
	factory := func(modelName string) (embedding.Provider, error) {
		atomic.AddInt32(&constructCount, 1)
		return &fakeProvider{}, nil
	}
	svc := embedding.NewService(factory, 8)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.EmbedQuery(context.Background(), "shared-model", "hi")
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&constructCount))
}

func TestBoundEmbedder_DelegatesToFixedModel(t *testing.T) {
	factory := func(modelName string) (embedding.Provider, error) {
		return &fakeProvider{name: modelName}, nil
	}
	svc := embedding.NewService(factory, 2)
	bound := svc.Bind("kb-model")

	vec, err := bound.EmbedQuery(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, vec)
}

type fakeProvider struct {
	name string
}

func (f *fakeProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func (f *fakeProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1}, nil
}

func (f *fakeProvider) Dimension() int { return 1 }
func (f *fakeProvider) Close() error   { return nil }
