package dialogue

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Step identifies a processing node in the dialogue graph. The set is
// closed: every step the interpreter can visit is declared below, so an
// unknown-step stop cannot happen at runtime.
type Step string

const (
	StepClassify    Step = "classify"
	StepMemory      Step = "memory"
	StepSelect      Step = "select_speakers"
	StepRespond     Step = "respond"
	StepCollaborate Step = "collaborate"
	StepConsensus   Step = "consensus"
	StepValidate    Step = "validate"
	StepFormat      Step = "format"
)

// maxIterations caps graph traversal per invocation. Exceeding it is a
// soft failure: the turn yields no replies instead of crashing the caller.
const maxIterations = 15

// stepOutput is what a step hands back to the interpreter.
type stepOutput struct {
	state *State

	// next overrides routing for this transition when non-empty.
	next Step

	// halt stops traversal and returns replies to the caller.
	halt    bool
	replies []Reply
}

// stepFunc executes one node. It receives a state it may treat as its own
// (the interpreter passes a clone) and returns the successor state.
type stepFunc func(ctx context.Context, st *State) (stepOutput, error)

// routerFunc picks the next step from state alone. Routers must be pure:
// the traversal stays deterministic given identical inputs.
type routerFunc func(st *State) Step

// Graph wires steps, unconditional edges, and conditional routers into an
// executable traversal.
type Graph struct {
	steps   map[Step]stepFunc
	edges   map[Step][]Step
	routers map[Step]routerFunc
	entry   Step
	logger  *zap.Logger
}

// newGraph creates an empty graph starting at entry.
func newGraph(entry Step, logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{
		steps:   make(map[Step]stepFunc),
		edges:   make(map[Step][]Step),
		routers: make(map[Step]routerFunc),
		entry:   entry,
		logger:  logger,
	}
}

func (g *Graph) addStep(id Step, fn stepFunc) {
	g.steps[id] = fn
}

func (g *Graph) addEdge(from, to Step) {
	g.edges[from] = append(g.edges[from], to)
}

func (g *Graph) addRouter(from Step, fn routerFunc) {
	g.routers[from] = fn
}

// Execute runs the graph from the entry step until a step halts, routing
// runs out, or the iteration ceiling trips. The final state is returned
// alongside the replies so the caller can persist turn bookkeeping.
func (g *Graph) Execute(ctx context.Context, initial *State) ([]Reply, *State, error) {
	st := initial
	current := g.entry

	for {
		if st.Iterations >= maxIterations {
			g.logger.Warn("iteration ceiling reached, abandoning turn",
				zap.Int("iterations", st.Iterations),
				zap.String("step", string(current)))
			return []Reply{}, st, nil
		}

		fn, ok := g.steps[current]
		if !ok {
			return nil, st, fmt.Errorf("step %q has no registered function", current)
		}

		g.logger.Debug("executing step",
			zap.String("step", string(current)),
			zap.Int("iteration", st.Iterations))

		next := st.Clone()
		next.Iterations++

		out, err := fn(ctx, next)
		if err != nil {
			return nil, st, fmt.Errorf("step %s: %w", current, err)
		}
		st = out.state

		if out.halt {
			return out.replies, st, nil
		}

		switch {
		case out.next != "":
			current = out.next
		case g.routers[current] != nil:
			current = g.routers[current](st)
		case len(g.edges[current]) > 0:
			current = g.edges[current][0]
		default:
			g.logger.Warn("no successor for step, stopping with no replies",
				zap.String("step", string(current)))
			return []Reply{}, st, nil
		}
	}
}
