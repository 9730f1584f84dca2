// Package stream converts graph execution events into the framed,
// line-delimited wire records a chat client reads, grounded on
// original_source/.../agent/utils.py's convert_to_vercel_sse.
package stream

import "encoding/json"

// Event Kind values this package gives dedicated framing to; any other
// kind still gets an "e" passthrough record.
const (
	KindChatModelStream = "on_chat_model_stream"
	KindChatModelEnd    = "on_chat_model_end"
	KindToolStart       = "on_tool_start"
	KindToolEnd         = "on_tool_end"
)

// Event is one observed graph execution event.
type Event struct {
	Kind     string
	Name     string
	RunID    string
	Data     map[string]any
	Tags     []string
	Metadata map[string]any
}

// Record is one framed output line: "<Tag>:<json>\n".
type Record struct {
	Tag     string
	Payload any
}

// Line renders the record in the wire format.
func (r Record) Line() (string, error) {
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return "", err
	}
	return r.Tag + ":" + string(data) + "\n", nil
}

// Convert turns one Event into its framed records, in emission order:
// reasoning before content for a single on_chat_model_stream event, and
// an "e" passthrough record last for every event observed, including
// kinds with no dedicated tag.
func Convert(event Event) []Record {
	var records []Record

	switch event.Kind {
	case KindChatModelStream:
		records = append(records, chatModelStreamRecords(event)...)
	case KindToolStart:
		records = append(records, Record{
			Tag: "9",
			Payload: map[string]any{
				"toolCallId": event.RunID,
				"toolName":   event.Name,
				"args":       event.Data["input"],
			},
		})
	case KindToolEnd:
		records = append(records, Record{
			Tag: "a",
			Payload: map[string]any{
				"toolCallId": event.RunID,
				"result":     stringifyOutput(event.Data["output"]),
			},
		})
	}

	records = append(records, Record{Tag: "e", Payload: event})
	return records
}

func chatModelStreamRecords(event Event) []Record {
	chunk, _ := event.Data["chunk"].(map[string]any)
	if chunk == nil {
		return nil
	}

	var records []Record
	if reasoning, _ := chunk["reasoning_content"].(string); reasoning != "" {
		records = append(records, Record{Tag: "2", Payload: reasoning})
	}
	if content, _ := chunk["content"].(string); content != "" {
		records = append(records, Record{Tag: "0", Payload: content})
	}
	return records
}

func stringifyOutput(output any) string {
	switch v := output.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
