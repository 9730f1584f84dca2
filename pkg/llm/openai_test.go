package llm_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duhu110/axiom/pkg/llm"
)

func TestInvoke_ParsesContentAndUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{"message": {"role": "assistant", "content": "hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))
	defer server.Close()

	provider := llm.NewOpenAIProvider(llm.OpenAIConfig{BaseURL: server.URL, APIKey: "k", Model: "test-model"})

	msg, err := provider.Invoke(context.Background(), []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello there", msg.Content)
	require.NotNil(t, msg.Usage.TotalTokens)
	assert.Equal(t, 15, *msg.Usage.TotalTokens)
}

func TestStream_AccumulatesContentDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"},\"finish_reason\":\"stop\"}],\"usage\":{\"total_tokens\":3}}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	provider := llm.NewOpenAIProvider(llm.OpenAIConfig{BaseURL: server.URL, APIKey: "k", Model: "test-model"})

	var content string
	var lastUsage *llm.Usage
	for delta, err := range provider.Stream(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil) {
		require.NoError(t, err)
		content += delta.ContentDelta
		if delta.Usage != nil {
			lastUsage = delta.Usage
		}
	}

	assert.Equal(t, "Hello", content)
	require.NotNil(t, lastUsage)
	assert.Equal(t, 3, *lastUsage.TotalTokens)
}

func TestPatchEmptyReasoning(t *testing.T) {
	messages := []llm.Message{
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
	}
	patched := llm.PatchEmptyReasoning(messages)
	require.NotNil(t, patched[1].ReasoningContent)
	assert.Equal(t, "", *patched[1].ReasoningContent)
	assert.Nil(t, messages[1].ReasoningContent, "original slice must not be mutated")
}
