package agent_test

import (
	"context"
	"encoding/json"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duhu110/axiom/pkg/agent"
	"github.com/duhu110/axiom/pkg/llm"
	"github.com/duhu110/axiom/pkg/model"
	"github.com/duhu110/axiom/pkg/vector"
)

// fakeLLM returns its queued responses in order, one per Invoke call.
type fakeLLM struct {
	responses []*llm.AssistantMessage
	calls     int
}

func (f *fakeLLM) Invoke(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.AssistantMessage, error) {
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *fakeLLM) Stream(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) iter.Seq2[*llm.AssistantDelta, error] {
	return func(yield func(*llm.AssistantDelta, error) bool) {}
}

type fakeMemoryStore struct {
	entries map[string]map[string]model.MemoryEntry
}

func newFakeMemoryStore() *fakeMemoryStore {
	return &fakeMemoryStore{entries: map[string]map[string]model.MemoryEntry{}}
}

func (f *fakeMemoryStore) GetMemory(ctx context.Context, namespace, key string) (*model.MemoryEntry, error) {
	ns, ok := f.entries[namespace]
	if !ok {
		return nil, nil
	}
	entry, ok := ns[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (f *fakeMemoryStore) PutMemory(ctx context.Context, namespace, key string, value map[string]any) (*model.MemoryEntry, error) {
	if f.entries[namespace] == nil {
		f.entries[namespace] = map[string]model.MemoryEntry{}
	}
	entry := model.MemoryEntry{Namespace: namespace, Key: key, Value: value}
	f.entries[namespace][key] = entry
	return &entry, nil
}

func (f *fakeMemoryStore) SearchMemory(ctx context.Context, namespace string, limit int) ([]model.MemoryEntry, error) {
	var out []model.MemoryEntry
	for _, entry := range f.entries[namespace] {
		out = append(out, entry)
	}
	return out, nil
}

func TestQAAgent_AnswersDirectlyWithoutToolCalls(t *testing.T) {
	llmFake := &fakeLLM{responses: []*llm.AssistantMessage{
		{Content: "hi there"},
	}}
	qa, err := agent.NewQAAgent(llmFake, newFakeMemoryStore())
	require.NoError(t, err)
	g, err := qa.Compile()
	require.NoError(t, err)

	final, err := g.Run(context.Background(), agent.State{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hello"}},
		UserID:   "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, llmFake.calls)
	assert.Equal(t, "hi there", final.Messages[len(final.Messages)-1].Content)
}

func TestQAAgent_RunsWeatherToolThenAnswers(t *testing.T) {
	argsJSON, _ := json.Marshal(map[string]any{"city": "Beijing"})
	llmFake := &fakeLLM{responses: []*llm.AssistantMessage{
		{ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "get_current_weather", Args: string(argsJSON)}}},
		{Content: "it's sunny in Beijing"},
	}}
	qa, err := agent.NewQAAgent(llmFake, newFakeMemoryStore())
	require.NoError(t, err)
	g, err := qa.Compile()
	require.NoError(t, err)

	final, err := g.Run(context.Background(), agent.State{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "what's the weather in Beijing?"}},
		UserID:   "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, llmFake.calls)

	var toolMsg *llm.Message
	for i := range final.Messages {
		if final.Messages[i].Role == llm.RoleTool {
			toolMsg = &final.Messages[i]
		}
	}
	require.NotNil(t, toolMsg)
	assert.Equal(t, "Sunny, 25°C", toolMsg.Content)
	assert.Equal(t, "it's sunny in Beijing", final.Messages[len(final.Messages)-1].Content)
}

func TestQAAgent_UpsertMemoryIsIdempotentOnSameContent(t *testing.T) {
	mem := newFakeMemoryStore()
	argsJSON, _ := json.Marshal(map[string]any{"content": "likes spicy food", "key": "food_preference"})
	llmFake := &fakeLLM{responses: []*llm.AssistantMessage{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "upsert_memory", Args: string(argsJSON)}}},
		{Content: "noted"},
		{ToolCalls: []llm.ToolCall{{ID: "c2", Name: "upsert_memory", Args: string(argsJSON)}}},
		{Content: "noted again"},
	}}
	qa, err := agent.NewQAAgent(llmFake, mem)
	require.NoError(t, err)
	g, err := qa.Compile()
	require.NoError(t, err)

	_, err = g.Run(context.Background(), agent.State{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "I like spicy food"}},
		UserID:   "user-1",
	})
	require.NoError(t, err)

	final, err := g.Run(context.Background(), agent.State{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "I like spicy food"}},
		UserID:   "user-1",
	})
	require.NoError(t, err)

	var toolMsg *llm.Message
	for i := range final.Messages {
		if final.Messages[i].Role == llm.RoleTool {
			toolMsg = &final.Messages[i]
		}
	}
	require.NotNil(t, toolMsg)
	assert.Contains(t, toolMsg.Content, "already exists")
}

type fakeSearcher struct {
	docs   []vector.Document
	err    error
	filter vector.Filter
}

func (f *fakeSearcher) Search(ctx context.Context, query string, filter vector.Filter, params vector.SearchParams) ([]vector.Document, error) {
	f.filter = filter
	return f.docs, f.err
}

type fakeKBResolver struct {
	ids []string
}

func (f *fakeKBResolver) AccessibleKBIDs(ctx context.Context, userID string) ([]string, error) {
	return f.ids, nil
}

func TestRAGAgent_AnswersFromEvidence(t *testing.T) {
	llmFake := &fakeLLM{responses: []*llm.AssistantMessage{
		{Content: "what is the refund policy"},
		{Content: "refunds are processed within 14 days"},
	}}
	searcher := &fakeSearcher{docs: []vector.Document{
		{Content: "Refunds are processed within 14 days of return.", Score: 0.9},
	}}
	rag := agent.NewRAGAgent(llmFake, searcher, &fakeKBResolver{ids: []string{"kb-1"}})
	g, err := rag.Compile()
	require.NoError(t, err)

	final, err := g.Run(context.Background(), agent.State{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "what is the refund policy?"}},
		UserID:   "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "refunds are processed within 14 days", final.Messages[len(final.Messages)-1].Content)
}

func TestRAGAgent_NoEvidenceReturnsFixedReply(t *testing.T) {
	llmFake := &fakeLLM{responses: []*llm.AssistantMessage{
		{Content: "rewritten query"},
	}}
	searcher := &fakeSearcher{docs: nil}
	rag := agent.NewRAGAgent(llmFake, searcher, &fakeKBResolver{ids: nil})
	g, err := rag.Compile()
	require.NoError(t, err)

	final, err := g.Run(context.Background(), agent.State{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "anything in the docs about X?"}},
		UserID:   "user-1",
	})
	require.NoError(t, err)
	assert.Contains(t, final.Messages[len(final.Messages)-1].Content, "couldn't find")
	assert.Equal(t, 1, llmFake.calls, "answer node should skip the LLM call entirely with no evidence")
}

func TestRAGAgent_RespectsExplicitKBScope(t *testing.T) {
	llmFake := &fakeLLM{responses: []*llm.AssistantMessage{
		{Content: "q"},
		{Content: "a"},
	}}
	searcher := &fakeSearcher{docs: []vector.Document{{Content: "evidence"}}}
	rag := agent.NewRAGAgent(llmFake, searcher, &fakeKBResolver{ids: []string{"kb-other"}})
	g, err := rag.Compile()
	require.NoError(t, err)

	_, err = g.Run(context.Background(), agent.State{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "q"}},
		UserID:   "user-1",
		KBID:     "kb-explicit",
	})
	require.NoError(t, err)
	assert.Equal(t, vector.Filter{"kb_id": "kb-explicit"}, searcher.filter)
}

func TestSQLAgent_ReturnsStubMessage(t *testing.T) {
	sql := agent.NewSQLAgent()
	g, err := sql.Compile()
	require.NoError(t, err)

	final, err := g.Run(context.Background(), agent.State{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "how many rows are in the orders table?"}},
	})
	require.NoError(t, err)
	assert.Contains(t, final.Messages[len(final.Messages)-1].Content, "not yet implemented")
}
