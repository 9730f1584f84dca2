package router_test

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duhu110/axiom/pkg/llm"
	"github.com/duhu110/axiom/pkg/model"
	"github.com/duhu110/axiom/pkg/router"
)

type fakeLLM struct {
	content string
	err     error
}

func (f *fakeLLM) Invoke(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.AssistantMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.AssistantMessage{Content: f.content}, nil
}

func (f *fakeLLM) Stream(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) iter.Seq2[*llm.AssistantDelta, error] {
	return func(yield func(*llm.AssistantDelta, error) bool) {}
}

type fakeMemoryStore struct{}

func (fakeMemoryStore) SearchMemory(ctx context.Context, namespace string, limit int) ([]model.MemoryEntry, error) {
	return nil, nil
}

func TestRouter_UsesClassifierResponseWhenValid(t *testing.T) {
	r := router.New(&fakeLLM{content: "  RAG  "}, fakeMemoryStore{})
	target, err := r.Route(context.Background(), "tell me a joke", nil, "user-1")
	require.NoError(t, err)
	assert.Equal(t, router.RAG, target)
}

func TestRouter_FallsBackToSQLKeywordOnInvalidClassifierOutput(t *testing.T) {
	r := router.New(&fakeLLM{content: "I cannot decide"}, fakeMemoryStore{})
	target, err := r.Route(context.Background(), "How many records are in the orders table?", nil, "user-1")
	require.NoError(t, err)
	assert.Equal(t, router.SQL, target)
}

func TestRouter_FallsBackToRAGKeywordOnClassifierError(t *testing.T) {
	r := router.New(&fakeLLM{err: assertErr{}}, fakeMemoryStore{})
	target, err := r.Route(context.Background(), "search the knowledge base for onboarding docs", nil, "user-1")
	require.NoError(t, err)
	assert.Equal(t, router.RAG, target)
}

func TestRouter_DefaultsToQAWhenNoKeywordMatches(t *testing.T) {
	r := router.New(&fakeLLM{content: "unparseable"}, fakeMemoryStore{})
	target, err := r.Route(context.Background(), "what's the weather like today?", nil, "user-1")
	require.NoError(t, err)
	assert.Equal(t, router.QA, target)
}

type assertErr struct{}

func (assertErr) Error() string { return "classifier unavailable" }
