package router

import (
	"context"
	"fmt"

	"github.com/duhu110/axiom/pkg/agent"
	"github.com/duhu110/axiom/pkg/graph"
	"github.com/duhu110/axiom/pkg/llm"
)

// maxSteps bounds the compiled router graph: route -> one sub-agent ->
// end is always two transitions, generous headroom for a misbehaving
// sub-agent graph to still terminate cleanly.
const maxSteps = 5

// Graph wires a Router's route_node to the three compiled sub-agent
// graphs as nested subgraphs, so their internal event streams still
// surface through the same State.Messages channel (spec.md §4.8: "Sub-
// agents run as nested subgraphs so that their internal event stream is
// preserved").
type Graph struct {
	router    *Router
	qa, rag, sql *graph.Graph[agent.State]
}

// NewGraph builds a router Graph from a classifier and the three
// compiled sub-agent graphs.
func NewGraph(router *Router, qa, rag, sql *graph.Graph[agent.State]) *Graph {
	return &Graph{router: router, qa: qa, rag: rag, sql: sql}
}

// Compile builds the route_node -> {qa, rag, sql} -> end graph.
func (g *Graph) Compile() (*graph.Graph[agent.State], error) {
	nodes := map[string]graph.Node[agent.State]{
		"route_node": g.routeNode,
		string(QA):   subgraphNode(g.qa),
		string(RAG):  subgraphNode(g.rag),
		string(SQL):  subgraphNode(g.sql),
	}
	return graph.Compile("route_node", nodes, agent.Reduce, maxSteps)
}

func (g *Graph) routeNode(ctx context.Context, state agent.State) (agent.State, string, error) {
	query := lastUserMessage(state.Messages)
	target, err := g.router.Route(ctx, query, state.Messages, state.UserID)
	if err != nil {
		return agent.State{}, "", fmt.Errorf("router: %w", err)
	}
	return agent.State{Route: string(target)}, string(target), nil
}

// subgraphNode runs a compiled sub-agent graph to completion and
// surfaces only the messages it appended, so the outer Reduce doesn't
// re-append messages the sub-run already folded into its own result.
func subgraphNode(sub *graph.Graph[agent.State]) graph.Node[agent.State] {
	return func(ctx context.Context, state agent.State) (agent.State, string, error) {
		final, err := sub.Run(ctx, state)
		if err != nil {
			return agent.State{}, "", err
		}
		return agent.State{Messages: final.Messages[len(state.Messages):]}, graph.End, nil
	}
}

func lastUserMessage(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
