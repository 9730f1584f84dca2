package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/duhu110/axiom/pkg/graph"
	"github.com/duhu110/axiom/pkg/llm"
	"github.com/duhu110/axiom/pkg/vector"
)

const (
	ragTopK          = 5
	ragSnippetChars  = 1200
	noEvidenceReply  = "I couldn't find any relevant information in the knowledge base to answer that."
	rewritePrompt    = "Rewrite the user's last message as a standalone search query for a knowledge base. " +
		"Output only the rewritten query, nothing else."
)

// KBResolver resolves the knowledge bases a user may search when no
// explicit kb_id scope was given: their own KBs plus every public one.
type KBResolver interface {
	AccessibleKBIDs(ctx context.Context, userID string) ([]string, error)
}

// Searcher is the narrow retrieval dependency the RAG agent needs;
// satisfied structurally by vector.Store.
type Searcher interface {
	Search(ctx context.Context, query string, filter vector.Filter, params vector.SearchParams) ([]vector.Document, error)
}

// RAGAgent answers questions grounded in retrieved knowledge-base
// content: rewrite the query, search the scoped vector store, then
// answer strictly from the retrieved evidence. original_source's own
// rag_agent.py is a stub returning a canned placeholder; this builds out
// the full rewrite/search/answer contract it never implemented.
type RAGAgent struct {
	LLM   llm.Provider
	Store Searcher
	KBs   KBResolver
}

// NewRAGAgent builds a RAGAgent bound to an LLM, a retriever, and a KB
// scope resolver.
func NewRAGAgent(provider llm.Provider, store Searcher, kbs KBResolver) *RAGAgent {
	return &RAGAgent{LLM: provider, Store: store, KBs: kbs}
}

// Compile builds the rewrite -> search -> answer graph.
func (a *RAGAgent) Compile() (*graph.Graph[State], error) {
	nodes := map[string]graph.Node[State]{
		"rewrite": a.rewrite,
		"search":  a.search,
		"answer":  a.answer,
	}
	return graph.Compile("rewrite", nodes, Reduce, maxSteps)
}

func (a *RAGAgent) rewrite(ctx context.Context, state State) (State, string, error) {
	query := lastUserMessage(state.Messages)
	if query == "" {
		return State{Rewritten: query}, "search", nil
	}

	resp, err := a.LLM.Invoke(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: rewritePrompt},
		{Role: llm.RoleUser, Content: query},
	}, nil)
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		// Rewrite is best-effort; a failure or empty result falls back to
		// the original query rather than failing the turn.
		return State{Rewritten: query}, "search", nil
	}
	return State{Rewritten: strings.TrimSpace(resp.Content)}, "search", nil
}

func (a *RAGAgent) search(ctx context.Context, state State) (State, string, error) {
	filter, ok, err := a.scopeFilter(ctx, state)
	if err != nil {
		return State{}, "", fmt.Errorf("rag agent: resolve kb scope: %w", err)
	}
	if !ok {
		return State{Evidence: []vector.Document{}}, "answer", nil
	}

	docs, err := a.Store.Search(ctx, state.Rewritten, filter, vector.SearchParams{
		K:        ragTopK,
		Strategy: vector.StrategySimilarity,
	})
	if err != nil {
		return State{}, "", fmt.Errorf("rag agent: search: %w", err)
	}
	if docs == nil {
		docs = []vector.Document{}
	}
	return State{Evidence: docs}, "answer", nil
}

// scopeFilter builds the metadata filter restricting search to either
// one requested KB or every KB accessible to the user. The second
// return value is false when the user has no accessible KB at all, in
// which case the caller should skip search entirely.
func (a *RAGAgent) scopeFilter(ctx context.Context, state State) (vector.Filter, bool, error) {
	if state.KBID != "" {
		return vector.Filter{"kb_id": state.KBID}, true, nil
	}

	kbIDs, err := a.KBs.AccessibleKBIDs(ctx, state.UserID)
	if err != nil {
		return nil, false, err
	}
	if len(kbIDs) == 0 {
		return nil, false, nil
	}
	ids := make([]any, len(kbIDs))
	for i, id := range kbIDs {
		ids[i] = id
	}
	return vector.Filter{"kb_id": vector.In(ids...)}, true, nil
}

func (a *RAGAgent) answer(ctx context.Context, state State) (State, string, error) {
	if len(state.Evidence) == 0 {
		return State{Messages: []llm.Message{{Role: llm.RoleAssistant, Content: noEvidenceReply}}}, graph.End, nil
	}

	prompt := buildEvidencePrompt(state.Evidence)
	resp, err := a.LLM.Invoke(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: prompt},
		{Role: llm.RoleUser, Content: lastUserMessage(state.Messages)},
	}, nil)
	if err != nil {
		return State{}, "", fmt.Errorf("rag agent: answer: %w", err)
	}

	msg := llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ReasoningContent: &resp.ReasoningContent}
	if resp.Usage != nil {
		msg.Metadata = map[string]any{"usage": resp.Usage}
	}
	return State{Messages: []llm.Message{msg}}, graph.End, nil
}

func buildEvidencePrompt(evidence []vector.Document) string {
	var b strings.Builder
	b.WriteString("Answer the user's question strictly from the evidence below. " +
		"If the evidence is insufficient to answer, say so explicitly rather than guessing.\n\n")
	for i, doc := range evidence {
		snippet := doc.Content
		if runes := []rune(snippet); len(runes) > ragSnippetChars {
			snippet = string(runes[:ragSnippetChars])
		}
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, snippet)
	}
	return b.String()
}

func lastUserMessage(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
