package usage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duhu110/axiom/pkg/model"
	"github.com/duhu110/axiom/pkg/store"
	"github.com/duhu110/axiom/pkg/stream"
	"github.com/duhu110/axiom/pkg/usage"
)

type fakeStore struct {
	inserted []model.LLMUsageRecord
}

func (f *fakeStore) InsertUsage(ctx context.Context, record model.LLMUsageRecord) error {
	f.inserted = append(f.inserted, record)
	return nil
}

func (f *fakeStore) ListUsage(ctx context.Context, userID string, filter store.UsageFilter, skip, limit int) ([]model.LLMUsageRecord, int, error) {
	return f.inserted, len(f.inserted), nil
}

func (f *fakeStore) SummaryUsage(ctx context.Context, userID string, filter store.UsageFilter, groupBy string) ([]store.UsageSummary, error) {
	return nil, nil
}

func TestExtract_PrefersUsageMetadata(t *testing.T) {
	data := map[string]any{
		"response": map[string]any{
			"usage_metadata": map[string]any{"prompt_tokens": 10.0, "completion_tokens": 5.0, "total_tokens": 15.0},
		},
	}
	raw := usage.Extract(data)
	require.NotNil(t, raw)
	prompt, completion, total := usage.Normalize(raw)
	require.NotNil(t, prompt)
	assert.Equal(t, 10, *prompt)
	assert.Equal(t, 5, *completion)
	assert.Equal(t, 15, *total)
}

func TestExtract_FallsBackToResponseMetadataUsage(t *testing.T) {
	data := map[string]any{
		"response": map[string]any{
			"response_metadata": map[string]any{
				"usage": map[string]any{"input_tokens": 3.0, "output_tokens": 4.0, "total": 7.0},
			},
		},
	}
	raw := usage.Extract(data)
	require.NotNil(t, raw)
	prompt, completion, total := usage.Normalize(raw)
	assert.Equal(t, 3, *prompt)
	assert.Equal(t, 4, *completion)
	assert.Equal(t, 7, *total)
}

func TestExtract_FallsBackToNestedTokenUsage(t *testing.T) {
	data := map[string]any{
		"response": map[string]any{
			"response_metadata": map[string]any{
				"token_usage": map[string]any{"prompt_tokens": 1.0, "completion_tokens": 2.0, "total_tokens": 3.0},
			},
		},
	}
	raw := usage.Extract(data)
	require.NotNil(t, raw)
}

func TestExtract_ReturnsNilWhenNoUsageAnywhere(t *testing.T) {
	raw := usage.Extract(map[string]any{"response": map[string]any{}})
	assert.Nil(t, raw)
}

func TestRecorder_RecordFromEvent_PersistsNormalizedRow(t *testing.T) {
	fs := &fakeStore{}
	r := usage.NewRecorder(fs)

	event := stream.Event{
		Kind: stream.KindChatModelEnd,
		Data: map[string]any{
			"response": map[string]any{
				"usage_metadata": map[string]any{"prompt_tokens": 10.0, "completion_tokens": 5.0, "total_tokens": 15.0},
			},
		},
		Metadata: map[string]any{"request_id": "req-1"},
	}
	err := r.RecordFromEvent(context.Background(), "user-1", "deepseek-chat", event)
	require.NoError(t, err)
	require.Len(t, fs.inserted, 1)
	assert.Equal(t, "user-1", fs.inserted[0].UserID)
	assert.Equal(t, 15, *fs.inserted[0].TotalTokens)
	require.NotNil(t, fs.inserted[0].RequestID)
	assert.Equal(t, "req-1", *fs.inserted[0].RequestID)
}

func TestRecorder_RecordFromEvent_NoopWhenNoUsage(t *testing.T) {
	fs := &fakeStore{}
	r := usage.NewRecorder(fs)

	err := r.RecordFromEvent(context.Background(), "user-1", "model", stream.Event{Data: map[string]any{}})
	require.NoError(t, err)
	assert.Empty(t, fs.inserted)
}

func TestRecorder_List_DelegatesToStore(t *testing.T) {
	fs := &fakeStore{inserted: []model.LLMUsageRecord{{UserID: "user-1"}}}
	r := usage.NewRecorder(fs)

	rows, total, err := r.List(context.Background(), "user-1", nil, nil, nil, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, rows, 1)
}
