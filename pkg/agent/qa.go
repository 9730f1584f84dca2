package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/duhu110/axiom/pkg/graph"
	"github.com/duhu110/axiom/pkg/llm"
	"github.com/duhu110/axiom/pkg/model"
	"github.com/duhu110/axiom/pkg/tool"
)

const memorySearchLimit = 50

// QAAgent is the general-purpose conversational sub-agent: an agent/tools
// loop with long-term memory injected into its system prompt, grounded on
// original_source/.../subagents/qa_agent.py.
type QAAgent struct {
	LLM      llm.Provider
	Memories MemoryStore
	tools    *tool.Registry
}

// NewQAAgent builds a QAAgent bound to an LLM and a memory store, wiring
// the fixed get_current_weather/upsert_memory tool set.
func NewQAAgent(provider llm.Provider, memories MemoryStore) (*QAAgent, error) {
	weather, err := newGetCurrentWeatherTool()
	if err != nil {
		return nil, err
	}
	upsert, err := newUpsertMemoryTool(memories)
	if err != nil {
		return nil, err
	}
	return &QAAgent{LLM: provider, Memories: memories, tools: tool.NewRegistry(weather, upsert)}, nil
}

// Compile builds the agent -> (conditional) tools -> agent graph.
func (a *QAAgent) Compile() (*graph.Graph[State], error) {
	nodes := map[string]graph.Node[State]{
		"agent": a.callModel,
		"tools": a.callTools,
	}
	return graph.Compile("agent", nodes, Reduce, maxSteps)
}

func (a *QAAgent) callModel(ctx context.Context, state State) (State, string, error) {
	userID := resolveUserID(state.UserID, state.ThreadID)
	namespace := model.MemoryNamespace(userID)

	memories, err := a.Memories.SearchMemory(ctx, namespace, memorySearchLimit)
	if err != nil {
		return State{}, "", fmt.Errorf("qa agent: search memories: %w", err)
	}

	systemPrompt := buildSystemPrompt(userID, memories)
	input := append([]llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}, state.Messages...)
	input = llm.PatchEmptyReasoning(input)

	resp, err := a.LLM.Invoke(ctx, input, toLLMDefinitions(a.tools.Definitions()))
	if err != nil {
		return State{}, "", fmt.Errorf("qa agent: invoke llm: %w", err)
	}

	msg := llm.Message{
		Role:             llm.RoleAssistant,
		Content:          resp.Content,
		ToolCalls:        resp.ToolCalls,
		ReasoningContent: &resp.ReasoningContent,
	}
	if resp.Usage != nil {
		msg.Metadata = map[string]any{"usage": resp.Usage}
	}

	if len(resp.ToolCalls) > 0 {
		return State{Messages: []llm.Message{msg}, UserID: userID}, "tools", nil
	}
	return State{Messages: []llm.Message{msg}, UserID: userID}, graph.End, nil
}

func (a *QAAgent) callTools(ctx context.Context, state State) (State, string, error) {
	last := state.Messages[len(state.Messages)-1]

	tc := toolCtx{Context: ctx, userID: state.UserID, threadID: state.ThreadID}
	results := make([]llm.Message, 0, len(last.ToolCalls))
	for _, call := range last.ToolCalls {
		results = append(results, a.invokeOne(tc, call))
	}
	return State{Messages: results}, "agent", nil
}

func (a *QAAgent) invokeOne(ctx tool.Context, call llm.ToolCall) llm.Message {
	t, ok := a.tools.Get(call.Name)
	if !ok {
		return llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Content: fmt.Sprintf("unknown tool %q", call.Name)}
	}

	var args map[string]any
	if call.Args != "" {
		if err := json.Unmarshal([]byte(call.Args), &args); err != nil {
			return llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Content: fmt.Sprintf("invalid arguments: %v", err)}
		}
	}

	result, err := t.Call(ctx, args)
	if err != nil {
		return llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Content: fmt.Sprintf("error: %v", err)}
	}
	content, _ := result["result"].(string)
	if content == "" {
		encoded, _ := json.Marshal(result)
		content = string(encoded)
	}
	return llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Content: content}
}

func toLLMDefinitions(defs []tool.Definition) []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, len(defs))
	for i, d := range defs {
		out[i] = llm.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.Parameters}
	}
	return out
}

func buildSystemPrompt(userID string, memories []model.MemoryEntry) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant with long-term memory.\n\n")
	fmt.Fprintf(&b, "Current User ID: %s\n\n", userID)
	b.WriteString("Here are some things you remember about this user:\n")
	if len(memories) == 0 {
		b.WriteString("No memories yet.\n")
	} else {
		for _, m := range memories {
			content, _ := m.Value["content"].(string)
			fmt.Fprintf(&b, "- %s\n", content)
		}
	}
	b.WriteString("\nYou can use the `upsert_memory` tool to save new important information about the user.\n")
	return b.String()
}
