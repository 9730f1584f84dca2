package stream_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duhu110/axiom/pkg/stream"
)

func TestConvert_ChatModelStreamEmitsReasoningBeforeContent(t *testing.T) {
	event := stream.Event{
		Kind: stream.KindChatModelStream,
		Data: map[string]any{"chunk": map[string]any{
			"reasoning_content": "thinking...",
			"content":           "hello",
		}},
	}
	records := stream.Convert(event)
	require.Len(t, records, 3)
	assert.Equal(t, "2", records[0].Tag)
	assert.Equal(t, "0", records[1].Tag)
	assert.Equal(t, "e", records[2].Tag)

	line, err := records[0].Line()
	require.NoError(t, err)
	assert.Equal(t, "2:\"thinking...\"\n", line)
}

func TestConvert_ChatModelStreamContentOnly(t *testing.T) {
	event := stream.Event{
		Kind: stream.KindChatModelStream,
		Data: map[string]any{"chunk": map[string]any{"content": "hi"}},
	}
	records := stream.Convert(event)
	require.Len(t, records, 2)
	assert.Equal(t, "0", records[0].Tag)
	assert.Equal(t, "e", records[1].Tag)
}

func TestConvert_ToolStart(t *testing.T) {
	event := stream.Event{
		Kind:  stream.KindToolStart,
		Name:  "get_current_weather",
		RunID: "run-1",
		Data:  map[string]any{"input": map[string]any{"city": "Beijing"}},
	}
	records := stream.Convert(event)
	require.Len(t, records, 2)
	assert.Equal(t, "9", records[0].Tag)
	payload := records[0].Payload.(map[string]any)
	assert.Equal(t, "run-1", payload["toolCallId"])
	assert.Equal(t, "get_current_weather", payload["toolName"])
}

func TestConvert_ToolEndStringifiesResult(t *testing.T) {
	event := stream.Event{
		Kind:  stream.KindToolEnd,
		RunID: "run-1",
		Data:  map[string]any{"output": "Sunny, 25°C"},
	}
	records := stream.Convert(event)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Tag)
	payload := records[0].Payload.(map[string]any)
	assert.Equal(t, "Sunny, 25°C", payload["result"])
}

func TestConvert_UnknownKindOnlyEmitsPassthrough(t *testing.T) {
	event := stream.Event{Kind: "on_chain_start", Name: "whatever"}
	records := stream.Convert(event)
	require.Len(t, records, 1)
	assert.Equal(t, "e", records[0].Tag)
}

func TestWriter_WritesFramedLinesAndFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := stream.NewWriter(rec)
	require.NoError(t, err)

	err = w.WriteEvent(stream.Event{
		Kind: stream.KindChatModelStream,
		Data: map[string]any{"chunk": map[string]any{"content": "hi"}},
	})
	require.NoError(t, err)

	assert.Contains(t, rec.Body.String(), "0:\"hi\"\n")
	assert.Contains(t, rec.Body.String(), "e:")
}
