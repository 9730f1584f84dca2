// Package orchestrator composes the router graph, sub-agent execution,
// event framing, and usage recording into the chat and chat_stream
// entry points, grounded on original_source/.../agent/service.py's
// AgentService (lazy compiled app, call_model's memory/usage wiring,
// chat/chat_stream).
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/uuid"

	"github.com/duhu110/axiom/pkg/agent"
	"github.com/duhu110/axiom/pkg/graph"
	"github.com/duhu110/axiom/pkg/llm"
	"github.com/duhu110/axiom/pkg/router"
	"github.com/duhu110/axiom/pkg/store"
	"github.com/duhu110/axiom/pkg/stream"
)

// ChatMessage is one caller-supplied history turn, mirroring
// service.py's ChatMessage{role, content} schema.
type ChatMessage struct {
	Role    string
	Content string
}

// CheckpointStore is the narrow durability dependency Service needs;
// satisfied structurally by *store.Store.
type CheckpointStore interface {
	PutCheckpoint(ctx context.Context, threadID string, snapshot any) (*store.Checkpoint, error)
}

// UsageRecorder is the narrow usage dependency Service needs; satisfied
// structurally by *usage.Recorder.
type UsageRecorder interface {
	RecordFromEvent(ctx context.Context, userID, modelName string, event stream.Event) error
}

// Service composes a compiled router graph with checkpoint persistence
// and usage recording into the two request entry points. The compiled
// graph is built lazily on first use and reused across requests, the
// way AgentService.app is a cached property bound to a single compiled
// workflow rather than rebuilt per call.
type Service struct {
	RouterGraph *router.Graph
	Checkpoints CheckpointStore
	Usage       UsageRecorder
	Model       string
	Logger      *slog.Logger

	compiled *graph.Graph[agent.State]
}

// NewService builds a Service. modelName is recorded on every usage row
// this service writes.
func NewService(routerGraph *router.Graph, checkpoints CheckpointStore, usageRecorder UsageRecorder, modelName string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{RouterGraph: routerGraph, Checkpoints: checkpoints, Usage: usageRecorder, Model: modelName, Logger: logger}
}

func (s *Service) graph() (*graph.Graph[agent.State], error) {
	if s.compiled == nil {
		compiled, err := s.RouterGraph.Compile()
		if err != nil {
			return nil, fmt.Errorf("orchestrator: compile router graph: %w", err)
		}
		s.compiled = compiled
	}
	return s.compiled, nil
}

// Chat runs one non-streaming turn and returns the final assistant
// message's content, matching AgentService.chat.
func (s *Service) Chat(ctx context.Context, query string, history []ChatMessage, sessionID string) (string, error) {
	g, err := s.graph()
	if err != nil {
		return "", err
	}

	initial := buildState(query, history, sessionID, sessionID, "")
	final, err := g.Run(ctx, initial)
	if err != nil {
		return "", fmt.Errorf("orchestrator: run turn: %w", err)
	}

	s.persistCheckpoint(ctx, sessionID, final)
	s.recordUsage(ctx, sessionID, len(initial.Messages), final)

	if len(final.Messages) == 0 {
		return "", nil
	}
	return final.Messages[len(final.Messages)-1].Content, nil
}

// ChatStream runs one turn and yields the framed event sequence, the
// streaming counterpart of Chat. Sub-agent nodes execute to completion
// internally (graph.Graph.Run has no mid-node suspension point); each
// message they produce is surfaced here as one on_chat_model_stream
// event carrying that message's full content as a single delta, tool
// calls as on_tool_start/on_tool_end pairs, and the final assistant
// message additionally as on_chat_model_end so usage is recorded the
// same way a token-by-token stream would report it.
func (s *Service) ChatStream(ctx context.Context, query string, history []ChatMessage, sessionID, userID, kbID string) iter.Seq2[stream.Event, error] {
	return func(yield func(stream.Event, error) bool) {
		g, err := s.graph()
		if err != nil {
			yield(stream.Event{}, err)
			return
		}

		initial := buildState(query, history, userID, sessionID, kbID)
		final, err := g.Run(ctx, initial)
		if err != nil {
			yield(errorEvent(err), nil)
			return
		}

		delta := final.Messages[len(initial.Messages):]
		for i, msg := range delta {
			if msg.Role != llm.RoleAssistant {
				continue
			}

			runID := uuid.NewString()
			if !yield(chatModelStreamEvent(final.Route, runID, msg), nil) {
				return
			}

			for _, call := range msg.ToolCalls {
				if !yield(toolStartEvent(call), nil) {
					return
				}
			}
			for _, result := range toolResultsFollowing(delta[i+1:], msg.ToolCalls) {
				if !yield(toolEndEvent(result), nil) {
					return
				}
			}

			if i == len(delta)-1 {
				event := chatModelEndEvent(final.Route, runID, msg)
				if !yield(event, nil) {
					return
				}
				if err := s.Usage.RecordFromEvent(ctx, userID, s.Model, event); err != nil {
					s.Logger.Warn("orchestrator: record usage failed", "error", err)
				}
			}
		}

		s.persistCheckpoint(ctx, sessionID, final)
	}
}

func buildState(query string, history []ChatMessage, userID, threadID, kbID string) agent.State {
	messages := make([]llm.Message, 0, len(history)+1)
	for _, h := range history {
		messages = append(messages, llm.Message{Role: normalizeRole(h.Role), Content: h.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})
	return agent.State{Messages: messages, UserID: userID, ThreadID: threadID, KBID: kbID}
}

func normalizeRole(role string) llm.Role {
	switch role {
	case "assistant", "ai":
		return llm.RoleAssistant
	case "system":
		return llm.RoleSystem
	case "tool":
		return llm.RoleTool
	default:
		return llm.RoleUser
	}
}

// persistCheckpoint writes the turn's final state best-effort: a
// checkpoint write failure is logged and the turn still completes, per
// the "memory/checkpoint errors log and continue" failure semantics.
func (s *Service) persistCheckpoint(ctx context.Context, threadID string, final agent.State) {
	if s.Checkpoints == nil {
		return
	}
	if _, err := s.Checkpoints.PutCheckpoint(ctx, threadID, final); err != nil {
		s.Logger.Warn("orchestrator: persist checkpoint failed", "thread_id", threadID, "error", err)
	}
}

// recordUsage extracts and persists usage for the non-streaming Chat
// path, where there is no event sequence to hook RecordFromEvent into.
func (s *Service) recordUsage(ctx context.Context, userID string, inputLen int, final agent.State) {
	if s.Usage == nil {
		return
	}
	delta := final.Messages[inputLen:]
	if len(delta) == 0 {
		return
	}
	last := delta[len(delta)-1]
	if last.Role != llm.RoleAssistant {
		return
	}
	event := chatModelEndEvent(final.Route, uuid.NewString(), last)
	if err := s.Usage.RecordFromEvent(ctx, userID, s.Model, event); err != nil {
		s.Logger.Warn("orchestrator: record usage failed", "error", err)
	}
}

func chatModelStreamEvent(name, runID string, msg llm.Message) stream.Event {
	reasoning := ""
	if msg.ReasoningContent != nil {
		reasoning = *msg.ReasoningContent
	}
	return stream.Event{
		Kind:  stream.KindChatModelStream,
		Name:  name,
		RunID: runID,
		Data: map[string]any{
			"chunk": map[string]any{"content": msg.Content, "reasoning_content": reasoning},
		},
	}
}

func chatModelEndEvent(name, runID string, msg llm.Message) stream.Event {
	response := map[string]any{"content": msg.Content}
	if usage, ok := msg.Metadata["usage"].(*llm.Usage); ok && usage != nil {
		response["usage_metadata"] = usageMap(usage)
	}
	return stream.Event{
		Kind:     stream.KindChatModelEnd,
		Name:     name,
		RunID:    runID,
		Data:     map[string]any{"response": response},
		Metadata: map[string]any{"request_id": runID},
	}
}

func usageMap(u *llm.Usage) map[string]any {
	m := map[string]any{}
	if u.PromptTokens != nil {
		m["prompt_tokens"] = *u.PromptTokens
	}
	if u.CompletionTokens != nil {
		m["completion_tokens"] = *u.CompletionTokens
	}
	if u.TotalTokens != nil {
		m["total_tokens"] = *u.TotalTokens
	}
	return m
}

func toolStartEvent(call llm.ToolCall) stream.Event {
	var args any
	if call.Args != "" {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(call.Args), &decoded); err == nil {
			args = decoded
		} else {
			args = call.Args
		}
	}
	return stream.Event{
		Kind:  stream.KindToolStart,
		Name:  call.Name,
		RunID: call.ID,
		Data:  map[string]any{"input": args},
	}
}

type toolResult struct {
	callID  string
	content string
}

func toolEndEvent(result toolResult) stream.Event {
	return stream.Event{
		Kind:  stream.KindToolEnd,
		RunID: result.callID,
		Data:  map[string]any{"output": result.content},
	}
}

// toolResultsFollowing scans the messages after an assistant tool-call
// message for the matching tool-role results, in call order.
func toolResultsFollowing(after []llm.Message, calls []llm.ToolCall) []toolResult {
	byID := make(map[string]string, len(after))
	for _, msg := range after {
		if msg.Role == llm.RoleTool {
			byID[msg.ToolCallID] = msg.Content
		}
	}
	out := make([]toolResult, 0, len(calls))
	for _, call := range calls {
		if content, ok := byID[call.ID]; ok {
			out = append(out, toolResult{callID: call.ID, content: content})
		}
	}
	return out
}

func errorEvent(err error) stream.Event {
	return stream.Event{
		Kind: "error",
		Data: map[string]any{"error_kind": "UpstreamTransient", "message": err.Error()},
	}
}
