// Package graph implements the small node/edge state-machine runner
// used by every sub-agent: nodes return partial state updates that are
// merged into the running state by per-field reducers, the only
// non-trivial reducer being append-on-messages. This is intentionally
// a bespoke wrapper rather than an imported workflow framework — the
// sub-agent graphs are too small to justify one, per the design note
// that a directly-coded compile(state, handlers, edges) is enough.
package graph

import (
	"context"
	"fmt"
)

// Node is one step of the graph: given the current state, it returns a
// partial update to merge and the name of the next node to run (or End
// to terminate).
type Node[S any] func(ctx context.Context, state S) (update S, next string, err error)

// End is the sentinel next-node name that terminates execution.
const End = ""

// Reducer merges an incoming partial update into the accumulated
// state, returning the merged result. The zero value for most fields
// is "replace"; Reducers is only needed for fields with non-replace
// merge semantics (e.g. message-list append).
type Reducer[S any] func(state, update S) S

// Graph is a compiled set of named nodes with a designated entry point.
type Graph[S any] struct {
	entry    string
	nodes    map[string]Node[S]
	reduce   Reducer[S]
	maxSteps int
}

// Compile builds a Graph from named node handlers. reduce merges each
// node's returned update into the running state; pass a reducer that
// just returns update for pure-replace semantics. maxSteps bounds
// node transitions to guard against a node graph with an accidental
// cycle back to itself.
func Compile[S any](entry string, nodes map[string]Node[S], reduce Reducer[S], maxSteps int) (*Graph[S], error) {
	if _, ok := nodes[entry]; !ok {
		return nil, fmt.Errorf("graph: entry node %q not registered", entry)
	}
	if maxSteps <= 0 {
		maxSteps = 25
	}
	return &Graph[S]{entry: entry, nodes: nodes, reduce: reduce, maxSteps: maxSteps}, nil
}

// Run executes the graph from its entry node until a node returns
// graph.End or the step budget is exhausted.
func (g *Graph[S]) Run(ctx context.Context, initial S) (S, error) {
	state := initial
	current := g.entry

	for step := 0; step < g.maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		node, ok := g.nodes[current]
		if !ok {
			return state, fmt.Errorf("graph: no node registered for %q", current)
		}

		update, next, err := node(ctx, state)
		if err != nil {
			return state, fmt.Errorf("graph: node %q: %w", current, err)
		}
		state = g.reduce(state, update)

		if next == End {
			return state, nil
		}
		current = next
	}

	return state, fmt.Errorf("graph: exceeded max steps (%d), possible cycle", g.maxSteps)
}

// AppendMessages is the one non-trivial reducer the design note calls
// out: it merges two message slices by concatenation rather than
// replacement, for state shapes whose Messages field accumulates
// across node transitions.
func AppendMessages[M any](base, delta []M) []M {
	if len(delta) == 0 {
		return base
	}
	out := make([]M, 0, len(base)+len(delta))
	out = append(out, base...)
	out = append(out, delta...)
	return out
}
