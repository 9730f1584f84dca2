// Package agent hosts the three sub-agent graphs (qa, rag, sql) that the
// router dispatches to, each a small graph.Graph[State] over a shared
// state shape, grounded on original_source/.../subagents/*.py.
package agent

import (
	"github.com/duhu110/axiom/pkg/graph"
	"github.com/duhu110/axiom/pkg/llm"
	"github.com/duhu110/axiom/pkg/vector"
)

// State is the shared state threaded through every sub-agent graph.
// UserID/ThreadID/KBID are set once by the caller; nodes leave ThreadID
// and KBID untouched, and the QA agent's model node writes back the
// UserID it resolved. Route/Rewritten/Evidence are intermediate fields
// individual sub-agents populate for their own use.
type State struct {
	Messages []llm.Message

	UserID   string
	ThreadID string
	KBID     string // optional; empty means "every KB accessible to UserID"

	Route     string
	Rewritten string
	Evidence  []vector.Document
}

// Reduce merges a node's partial update into the running state: Messages
// appends, every other field replaces only when the update sets it,
// since a node that doesn't touch a field returns its zero value.
// Exported so callers composing agent.State graphs outside this package
// (the router, the orchestrator) can reuse the same merge semantics.
func Reduce(state, update State) State {
	state.Messages = graph.AppendMessages(state.Messages, update.Messages)
	if update.UserID != "" {
		state.UserID = update.UserID
	}
	if update.ThreadID != "" {
		state.ThreadID = update.ThreadID
	}
	if update.KBID != "" {
		state.KBID = update.KBID
	}
	if update.Route != "" {
		state.Route = update.Route
	}
	if update.Rewritten != "" {
		state.Rewritten = update.Rewritten
	}
	if update.Evidence != nil {
		state.Evidence = update.Evidence
	}
	return state
}

// maxSteps bounds every compiled sub-agent graph's node transitions.
const maxSteps = 25
