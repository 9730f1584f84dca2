package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/duhu110/axiom/pkg/errs"
	"github.com/duhu110/axiom/pkg/httpclient"
)

// OpenAIConfig configures an OpenAI-wire-compatible chat completion
// endpoint (OpenAI itself, DeepSeek, or any other provider speaking the
// same /chat/completions contract).
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// OpenAIProvider implements Provider against the chat/completions SSE
// contract, patching the reasoning_content field onto prior assistant
// messages that omit it (DeepSeek Reasoner rejects the omission).
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *httpclient.Client
}

// NewOpenAIProvider builds an OpenAIProvider over pkg/httpclient, reusing
// its retry/backoff machinery unmodified.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	return &OpenAIProvider{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
	}
}

type chatMessage struct {
	Role             string          `json:"role"`
	Content          string          `json:"content,omitempty"`
	ReasoningContent *string         `json:"reasoning_content,omitempty"`
	ToolCallID       string          `json:"tool_call_id,omitempty"`
	ToolCalls        []chatToolCall  `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	Index    *int             `json:"index,omitempty"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []chatTool    `json:"tools,omitempty"`
	Stream   bool          `json:"stream"`
}

type chatChoice struct {
	Delta        chatMessage `json:"delta"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func toChatMessages(messages []Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		cm := chatMessage{
			Role:             string(m.Role),
			Content:          m.Content,
			ReasoningContent: m.ReasoningContent,
			ToolCallID:       m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			cm.ToolCalls = append(cm.ToolCalls, chatToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: chatToolFunction{Name: tc.Name, Arguments: tc.Args},
			})
		}
		out = append(out, cm)
	}
	return out
}

func toChatTools(tools []ToolDefinition) []chatTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]chatTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func toUsage(u *chatUsage) *Usage {
	if u == nil {
		return nil
	}
	return &Usage{
		PromptTokens:     &u.PromptTokens,
		CompletionTokens: &u.CompletionTokens,
		TotalTokens:      &u.TotalTokens,
	}
}

func (p *OpenAIProvider) newRequest(ctx context.Context, body chatRequest) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errs.New(errs.Internal, "marshal chat request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, errs.New(errs.Internal, "build chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	return req, nil
}

// classifyHTTPError maps a failed HTTP round trip to an errs.Kind per
// spec.md §4.1/§7: 5xx/429/network failures are retryable, 4xx are not.
func classifyHTTPError(resp *http.Response, cause error) error {
	if resp == nil {
		return errs.New(errs.UpstreamTransient, "llm request failed", cause)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return errs.New(errs.UpstreamTransient, fmt.Sprintf("llm upstream returned %d", resp.StatusCode), cause)
	}
	return errs.New(errs.UpstreamPermanent, fmt.Sprintf("llm upstream returned %d", resp.StatusCode), cause)
}

// Invoke performs a single non-streaming completion.
func (p *OpenAIProvider) Invoke(ctx context.Context, messages []Message, tools []ToolDefinition) (*AssistantMessage, error) {
	req, err := p.newRequest(ctx, chatRequest{
		Model:    p.cfg.Model,
		Messages: toChatMessages(PatchEmptyReasoning(messages)),
		Tools:    toChatTools(tools),
		Stream:   false,
	})
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyHTTPError(resp, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.UpstreamTransient, "read chat response", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errs.New(errs.UpstreamPermanent, "parse chat response", err)
	}
	if parsed.Error != nil {
		return nil, errs.New(errs.UpstreamPermanent, parsed.Error.Message, nil)
	}
	if len(parsed.Choices) == 0 {
		return nil, errs.New(errs.UpstreamPermanent, "chat response had no choices", nil)
	}

	msg := parsed.Choices[0].Message
	out := &AssistantMessage{
		Content: msg.Content,
		Usage:   toUsage(parsed.Usage),
	}
	if msg.ReasoningContent != nil {
		out.ReasoningContent = *msg.ReasoningContent
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID: tc.ID, Name: tc.Function.Name, Args: tc.Function.Arguments,
		})
	}
	return out, nil
}

// Stream performs a streaming completion over server-sent events, reading
// the response body with bufio.Reader.ReadBytes('\n') rather than
// bufio.Scanner so a single large tool-call-argument line cannot exceed
// the scanner's fixed buffer.
func (p *OpenAIProvider) Stream(ctx context.Context, messages []Message, tools []ToolDefinition) iter.Seq2[*AssistantDelta, error] {
	return func(yield func(*AssistantDelta, error) bool) {
		req, err := p.newRequest(ctx, chatRequest{
			Model:    p.cfg.Model,
			Messages: toChatMessages(PatchEmptyReasoning(messages)),
			Tools:    toChatTools(tools),
			Stream:   true,
		})
		if err != nil {
			yield(nil, err)
			return
		}

		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			yield(nil, classifyHTTPError(resp, err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			yield(nil, classifyHTTPError(resp, fmt.Errorf("status %d", resp.StatusCode)))
			return
		}

		reader := bufio.NewReader(resp.Body)
		toolNames := map[int]string{}
		for {
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}

			line, err := reader.ReadBytes('\n')
			if err != nil {
				if err == io.EOF {
					return
				}
				yield(nil, errs.New(errs.UpstreamTransient, "read stream", err))
				return
			}

			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			data := line[len("data: "):]
			if string(data) == "[DONE]" {
				return
			}

			var chunk chatResponse
			if err := json.Unmarshal(data, &chunk); err != nil {
				continue
			}
			if chunk.Error != nil {
				yield(nil, errs.New(errs.UpstreamPermanent, chunk.Error.Message, nil))
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			choice := chunk.Choices[0]
			delta := &AssistantDelta{
				ContentDelta: choice.Delta.Content,
				FinishReason: choice.FinishReason,
				Usage:        toUsage(chunk.Usage),
			}
			if choice.Delta.ReasoningContent != nil {
				delta.ReasoningDelta = *choice.Delta.ReasoningContent
			}
			if len(choice.Delta.ToolCalls) > 0 {
				tc := choice.Delta.ToolCalls[0]
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				if tc.Function.Name != "" {
					toolNames[idx] = tc.Function.Name
				}
				delta.ToolCallDelta = &ToolCallDelta{
					Index:     idx,
					ID:        tc.ID,
					Name:      toolNames[idx],
					ArgsDelta: tc.Function.Arguments,
				}
			}

			if !yield(delta, nil) {
				return
			}
		}
	}
}

var _ Provider = (*OpenAIProvider)(nil)
