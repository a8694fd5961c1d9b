package dialogue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_HaltReturnsReplies(t *testing.T) {
	g := newGraph("a", nil)
	g.addStep("a", func(ctx context.Context, st *State) (stepOutput, error) {
		return stepOutput{state: st, halt: true, replies: []Reply{{PersonaName: "X", Content: "done"}}}, nil
	})

	replies, _, err := g.Execute(context.Background(), NewState(nil, nil, InstructorPolicy{}))
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "done", replies[0].Content)
}

func TestGraph_RoutingPrecedence(t *testing.T) {
	// A step-level override must beat both the router and the edge.
	var visited []Step
	record := func(id Step, out stepOutput) stepFunc {
		return func(ctx context.Context, st *State) (stepOutput, error) {
			visited = append(visited, id)
			out.state = st
			return out, nil
		}
	}

	g := newGraph("start", nil)
	g.addStep("start", record("start", stepOutput{next: "override"}))
	g.addStep("override", record("override", stepOutput{halt: true}))
	g.addStep("routed", record("routed", stepOutput{halt: true}))
	g.addRouter("start", func(st *State) Step { return "routed" })
	g.addEdge("start", "routed")

	_, _, err := g.Execute(context.Background(), NewState(nil, nil, InstructorPolicy{}))
	require.NoError(t, err)
	assert.Equal(t, []Step{"start", "override"}, visited)
}

func TestGraph_RouterBeatsEdge(t *testing.T) {
	var visited []Step
	g := newGraph("start", nil)
	g.addStep("start", func(ctx context.Context, st *State) (stepOutput, error) {
		visited = append(visited, "start")
		return stepOutput{state: st}, nil
	})
	g.addStep("routed", func(ctx context.Context, st *State) (stepOutput, error) {
		visited = append(visited, "routed")
		return stepOutput{state: st, halt: true}, nil
	})
	g.addStep("edged", func(ctx context.Context, st *State) (stepOutput, error) {
		visited = append(visited, "edged")
		return stepOutput{state: st, halt: true}, nil
	})
	g.addRouter("start", func(st *State) Step { return "routed" })
	g.addEdge("start", "edged")

	_, _, err := g.Execute(context.Background(), NewState(nil, nil, InstructorPolicy{}))
	require.NoError(t, err)
	assert.Equal(t, []Step{"start", "routed"}, visited)
}

func TestGraph_NoSuccessorStopsWithNoReplies(t *testing.T) {
	g := newGraph("only", nil)
	g.addStep("only", func(ctx context.Context, st *State) (stepOutput, error) {
		return stepOutput{state: st}, nil
	})

	replies, _, err := g.Execute(context.Background(), NewState(nil, nil, InstructorPolicy{}))
	require.NoError(t, err)
	assert.Empty(t, replies)
}

func TestGraph_IterationCeiling(t *testing.T) {
	// A self-loop must be cut off at the ceiling with an empty reply
	// set rather than an error.
	g := newGraph("loop", nil)
	g.addStep("loop", func(ctx context.Context, st *State) (stepOutput, error) {
		return stepOutput{state: st, next: "loop"}, nil
	})

	replies, final, err := g.Execute(context.Background(), NewState(nil, nil, InstructorPolicy{}))
	require.NoError(t, err)
	assert.Empty(t, replies)
	assert.Equal(t, maxIterations, final.Iterations)
}

func TestGraph_StepsDoNotAliasState(t *testing.T) {
	initial := NewState(testRoster(), nil, InstructorPolicy{})

	g := newGraph("mutate", nil)
	g.addStep("mutate", func(ctx context.Context, st *State) (stepOutput, error) {
		st.TurnCounts["Maria Lopez"] = 99
		st.Summary = "changed"
		return stepOutput{state: st, halt: true}, nil
	})

	_, final, err := g.Execute(context.Background(), initial)
	require.NoError(t, err)

	assert.Equal(t, 99, final.TurnCounts["Maria Lopez"])
	assert.Zero(t, initial.TurnCounts["Maria Lopez"], "input state must stay untouched")
	assert.Empty(t, initial.Summary)
}
