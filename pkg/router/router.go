// Package router picks which sub-agent graph (qa, rag, sql) handles a
// turn, grounded on original_source/.../agent/router_graph.py: an
// LLM-based classifier with a deterministic keyword fallback.
package router

import (
	"context"
	"strings"

	"github.com/duhu110/axiom/pkg/llm"
	"github.com/duhu110/axiom/pkg/model"
)

// Target is one of the three sub-agent graphs a turn can be routed to.
type Target string

const (
	QA  Target = "qa"
	RAG Target = "rag"
	SQL Target = "sql"
)

// recentMemoryLimit and recentMessageLimit bound how much context is
// fed to the classifier prompt, matching router_graph.py's own "last 8
// memories, last 6 messages" framing (spec.md §4.8).
const (
	recentMemoryLimit  = 8
	recentMessageLimit = 6
)

// sqlKeywords and ragKeywords are the exact fallback keyword lists from
// router_graph.py's SQL_KEYWORDS/RAG_KEYWORDS, checked in that order
// (SQL first, then RAG, defaulting to QA).
var sqlKeywords = []string{
	"sql", "数据库", "查询", "统计", "表", "字段",
	"database", "query", "table", "column", "record",
	"多少条", "有几条", "条数", "记录数",
}

var ragKeywords = []string{
	"文档", "知识库", "rag", "检索", "根据资料",
	"document", "knowledge", "retrieve", "search",
	"参考", "资料", "文件",
}

const classifierPrompt = `You are a routing classifier. Given the conversation so far, output exactly one token: qa, rag, or sql. Output nothing else.`

// MemoryStore is the narrow long-term-memory dependency the router
// needs to give the classifier prompt user context.
type MemoryStore interface {
	SearchMemory(ctx context.Context, namespace string, limit int) ([]model.MemoryEntry, error)
}

// Router classifies one turn into a Target.
type Router struct {
	LLM      llm.Provider
	Memories MemoryStore
}

// New builds a Router bound to a classifier LLM and the memory store.
func New(provider llm.Provider, memories MemoryStore) *Router {
	return &Router{LLM: provider, Memories: memories}
}

// Route classifies query given the recent conversation and user id. The
// LLM classifier runs first; an error, empty, or non-matching response
// falls back to the fixed keyword rules.
func (r *Router) Route(ctx context.Context, query string, recent []llm.Message, userID string) (Target, error) {
	namespace := model.MemoryNamespace(userID)
	memories, err := r.Memories.SearchMemory(ctx, namespace, recentMemoryLimit)
	if err != nil {
		return "", err
	}

	prompt := buildClassifierPrompt(memories, lastN(recent, recentMessageLimit), query)
	resp, err := r.LLM.Invoke(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: prompt},
		{Role: llm.RoleUser, Content: query},
	}, nil)
	if err == nil {
		if target, ok := parseTarget(resp.Content); ok {
			return target, nil
		}
	}
	return routeByKeywords(query), nil
}

func parseTarget(raw string) (Target, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch Target(normalized) {
	case QA, RAG, SQL:
		return Target(normalized), true
	}
	return "", false
}

func routeByKeywords(query string) Target {
	lower := strings.ToLower(query)
	for _, kw := range sqlKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return SQL
		}
	}
	for _, kw := range ragKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return RAG
		}
	}
	return QA
}

func lastN(messages []llm.Message, n int) []llm.Message {
	if len(messages) <= n {
		return messages
	}
	return messages[len(messages)-n:]
}

func buildClassifierPrompt(memories []model.MemoryEntry, recent []llm.Message, query string) string {
	var b strings.Builder
	b.WriteString(classifierPrompt)
	b.WriteString("\n\nUser memory:\n")
	if len(memories) == 0 {
		b.WriteString("none\n")
	} else {
		for _, m := range memories {
			content, _ := m.Value["content"].(string)
			b.WriteString("- ")
			b.WriteString(content)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nRecent conversation:\n")
	for _, m := range recent {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("\nCurrent query: ")
	b.WriteString(query)
	return b.String()
}
