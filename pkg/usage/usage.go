// Package usage extracts, normalizes, and persists LLM token-usage
// records from chat-model-end stream events, grounded on
// original_source/server/src/llm_usage/service.py's
// _extract_usage_from_response/_normalize_usage and record_usage.
package usage

import (
	"context"
	"time"

	"github.com/duhu110/axiom/pkg/model"
	"github.com/duhu110/axiom/pkg/store"
	"github.com/duhu110/axiom/pkg/stream"
)

// Store is the narrow persistence dependency Recorder needs; satisfied
// structurally by *store.Store.
type Store interface {
	InsertUsage(ctx context.Context, record model.LLMUsageRecord) error
	ListUsage(ctx context.Context, userID string, filter store.UsageFilter, skip, limit int) ([]model.LLMUsageRecord, int, error)
	SummaryUsage(ctx context.Context, userID string, filter store.UsageFilter, groupBy string) ([]store.UsageSummary, error)
}

// Recorder extracts usage from stream events and persists it, and
// answers the list/summary queries over persisted rows.
type Recorder struct {
	Store Store
}

// NewRecorder builds a Recorder over a usage Store.
func NewRecorder(s Store) *Recorder {
	return &Recorder{Store: s}
}

// RecordFromEvent extracts usage from a chat-model-end event's data
// payload and persists one row, or does nothing if no usage was found
// anywhere in the three fallback locations.
func (r *Recorder) RecordFromEvent(ctx context.Context, userID, modelName string, event stream.Event) error {
	raw := Extract(event.Data)
	if raw == nil {
		return nil
	}
	prompt, completion, total := Normalize(raw)

	var requestID *string
	if id := stringField(event.Metadata, "request_id", "id"); id != "" {
		requestID = &id
	}

	return r.Store.InsertUsage(ctx, model.LLMUsageRecord{
		UserID:           userID,
		Model:            modelName,
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      total,
		RequestID:        requestID,
		Metadata:         event.Metadata,
	})
}

// List returns a page of usage rows for user, newest first.
func (r *Recorder) List(ctx context.Context, userID string, start, end *time.Time, modelName *string, skip, limit int) ([]model.LLMUsageRecord, int, error) {
	return r.Store.ListUsage(ctx, userID, store.UsageFilter{Start: start, End: end, Model: modelName}, skip, limit)
}

// Summary aggregates usage sums for user grouped by day or model.
func (r *Recorder) Summary(ctx context.Context, userID string, start, end *time.Time, modelName *string, groupBy string) ([]store.UsageSummary, error) {
	return r.Store.SummaryUsage(ctx, userID, store.UsageFilter{Start: start, End: end, Model: modelName}, groupBy)
}

// Extract pulls the raw usage map out of a chat-model-end event's data
// payload, trying response.usage_metadata, then
// response.response_metadata.usage, then any equivalent nested under
// {token_usage, usage_metadata}, in that order.
func Extract(data map[string]any) map[string]any {
	response, _ := data["response"].(map[string]any)
	if response == nil {
		return nil
	}

	if u, ok := response["usage_metadata"].(map[string]any); ok {
		return u
	}

	responseMetadata, _ := response["response_metadata"].(map[string]any)
	if responseMetadata == nil {
		return nil
	}
	if u, ok := responseMetadata["usage"].(map[string]any); ok {
		return u
	}
	for _, key := range []string{"token_usage", "usage_metadata"} {
		if u, ok := responseMetadata[key].(map[string]any); ok {
			return u
		}
	}
	return nil
}

// Normalize maps a raw usage dict's varying key names onto the three
// canonical counters.
func Normalize(raw map[string]any) (prompt, completion, total *int) {
	prompt = firstInt(raw, "prompt_tokens", "input_tokens")
	completion = firstInt(raw, "completion_tokens", "output_tokens")
	total = firstInt(raw, "total_tokens", "total")
	return
}

func firstInt(raw map[string]any, keys ...string) *int {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if n, ok := toInt(v); ok {
			return &n
		}
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	}
	return 0, false
}

func stringField(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
