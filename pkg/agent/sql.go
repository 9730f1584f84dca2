package agent

import (
	"context"

	"github.com/duhu110/axiom/pkg/graph"
	"github.com/duhu110/axiom/pkg/llm"
)

const sqlStubMessage = "SQL querying is not yet implemented. Please try again later."

// SQLAgent is a deliberate stub: the router's target set names a sql
// route but no SQL generation/execution backend exists yet, matching
// original_source/.../subagents/sql_agent.py's own stub.
type SQLAgent struct{}

// NewSQLAgent builds the stub sub-agent.
func NewSQLAgent() *SQLAgent { return &SQLAgent{} }

// Compile builds the single-node stub graph.
func (a *SQLAgent) Compile() (*graph.Graph[State], error) {
	nodes := map[string]graph.Node[State]{
		"answer": a.answer,
	}
	return graph.Compile("answer", nodes, Reduce, maxSteps)
}

func (a *SQLAgent) answer(ctx context.Context, state State) (State, string, error) {
	msg := llm.Message{Role: llm.RoleAssistant, Content: sqlStubMessage}
	return State{Messages: []llm.Message{msg}}, graph.End, nil
}
