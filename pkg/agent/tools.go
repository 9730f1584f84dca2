package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/duhu110/axiom/pkg/model"
	"github.com/duhu110/axiom/pkg/tool"
	"github.com/duhu110/axiom/pkg/tool/functiontool"
)

// MemoryStore is the narrow long-term-memory dependency the QA agent's
// tools and agent node need; satisfied structurally by *store.Store.
type MemoryStore interface {
	GetMemory(ctx context.Context, namespace, key string) (*model.MemoryEntry, error)
	PutMemory(ctx context.Context, namespace, key string, value map[string]any) (*model.MemoryEntry, error)
	SearchMemory(ctx context.Context, namespace string, limit int) ([]model.MemoryEntry, error)
}

// toolCtx adapts a plain context.Context plus resolved identity into
// tool.Context for the duration of one tool call.
type toolCtx struct {
	context.Context
	userID   string
	threadID string
}

func (t toolCtx) UserID() string   { return t.userID }
func (t toolCtx) ThreadID() string { return t.threadID }

// resolveUserID applies the fallback chain from tools.py's
// upsert_memory: request metadata's user_id first, then thread_id, then
// a shared default so memory never fails to resolve a namespace.
func resolveUserID(userID, threadID string) string {
	if userID != "" {
		return userID
	}
	if threadID != "" {
		return threadID
	}
	return "default_user"
}

type upsertMemoryArgs struct {
	Content string `json:"content" jsonschema:"required,description=The information to remember, e.g. 'User likes spicy food'"`
	Key     string `json:"key" jsonschema:"required,description=A short descriptive key for this memory, e.g. 'food_preference'"`
}

// newUpsertMemoryTool builds the upsert_memory tool: it deduplicates by
// content equality before writing so repeating the same fact is a no-op.
func newUpsertMemoryTool(mem MemoryStore) (tool.CallableTool, error) {
	return functiontool.New(
		functiontool.Config{
			Name: "upsert_memory",
			Description: "Save or update a piece of long-term memory about the user. " +
				"Use this when the user shares important personal information, preferences, " +
				"or facts that should be remembered for future conversations.",
		},
		func(ctx tool.Context, args upsertMemoryArgs) (map[string]any, error) {
			namespace := model.MemoryNamespace(ctx.UserID())

			existing, err := mem.GetMemory(ctx, namespace, args.Key)
			if err != nil {
				return nil, fmt.Errorf("upsert_memory: lookup existing: %w", err)
			}
			if existing != nil {
				if content, _ := existing.Value["content"].(string); content == args.Content {
					return map[string]any{
						"result": fmt.Sprintf("Memory already exists: [%s] %s", args.Key, args.Content),
					}, nil
				}
			}

			if _, err := mem.PutMemory(ctx, namespace, args.Key, map[string]any{"content": args.Content}); err != nil {
				return nil, fmt.Errorf("upsert_memory: save: %w", err)
			}
			return map[string]any{
				"result": fmt.Sprintf("Memory saved for user %s: [%s] %s", ctx.UserID(), args.Key, args.Content),
			}, nil
		},
	)
}

type getCurrentWeatherArgs struct {
	City string `json:"city" jsonschema:"required,description=The name of the city to get the weather for"`
}

// newGetCurrentWeatherTool is a mock weather lookup matching tools.py's
// canned responses exactly, keyed by a case-insensitive substring match.
func newGetCurrentWeatherTool() (tool.CallableTool, error) {
	return functiontool.New(
		functiontool.Config{
			Name:        "get_current_weather",
			Description: "Get the current weather for a given city.",
		},
		func(ctx tool.Context, args getCurrentWeatherArgs) (map[string]any, error) {
			city := strings.ToLower(args.City)
			var report string
			switch {
			case strings.Contains(city, "beijing"):
				report = "Sunny, 25°C"
			case strings.Contains(city, "shanghai"):
				report = "Cloudy, 22°C"
			case strings.Contains(city, "new york"):
				report = "Rainy, 15°C"
			default:
				report = "Unknown city, assuming Sunny, 20°C"
			}
			return map[string]any{"result": report}, nil
		},
	)
}
