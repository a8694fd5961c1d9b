package dialogue

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/stakesim/stakesim/internal/llm"
	"github.com/stakesim/stakesim/internal/telemetry"
)

// Engine owns the dialogue graph and its step implementations. One engine
// serves many turns; all per-turn data lives in the State value.
type Engine struct {
	gen         llm.Generator
	logger      *zap.Logger
	metrics     *telemetry.Metrics
	rng         *rand.Rand
	maxTokens   int
	temperature float64
	graph       *Graph
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the metric sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRand injects the random source. Branch probabilities (the secondary
// follow-up speaker, the collaborative challenge) become deterministic
// under a seeded source.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithSampling sets generation sampling parameters for persona replies.
func WithSampling(maxTokens int, temperature float64) Option {
	return func(e *Engine) {
		e.maxTokens = maxTokens
		e.temperature = temperature
	}
}

// NewEngine builds an engine around a text generator.
func NewEngine(gen llm.Generator, opts ...Option) *Engine {
	e := &Engine{
		gen:         gen,
		logger:      zap.NewNop(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		maxTokens:   300,
		temperature: 0.8,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.graph = e.buildGraph()
	return e
}

// buildGraph wires the step functions, edges, and routers.
//
//	classify -> (retry | memory | select)
//	memory -> select
//	select -> (collaborate | respond)
//	collaborate -> (consensus | validate)
//	consensus -> validate
//	respond -> validate
//	validate -> (respond | collaborate | format)
//	format -> halt
func (e *Engine) buildGraph() *Graph {
	g := newGraph(StepClassify, e.logger.Named("graph"))

	g.addStep(StepClassify, e.classify)
	g.addStep(StepMemory, e.summarizeMemory)
	g.addStep(StepSelect, e.selectSpeakers)
	g.addStep(StepRespond, e.respond)
	g.addStep(StepCollaborate, e.collaborate)
	g.addStep(StepConsensus, e.summarizeConsensus)
	g.addStep(StepValidate, e.validate)
	g.addStep(StepFormat, e.formatOutput)

	g.addRouter(StepClassify, routeAfterClassify)
	g.addRouter(StepSelect, routeAfterSelect)
	g.addRouter(StepCollaborate, routeAfterCollaborate)
	g.addRouter(StepValidate, routeAfterValidate)

	g.addEdge(StepMemory, StepSelect)
	g.addEdge(StepRespond, StepValidate)
	g.addEdge(StepConsensus, StepValidate)

	return g
}

// Run executes one turn against the given state and returns the replies
// plus the final state for the caller to persist.
func (e *Engine) Run(ctx context.Context, st *State) ([]Reply, *State, error) {
	start := time.Now()
	replies, final, err := e.graph.Execute(ctx, st)
	if err != nil {
		return nil, final, err
	}
	if len(replies) == 0 && final.Iterations >= maxIterations {
		e.metrics.IterationLimitHit()
	}
	e.metrics.TurnProcessed(len(replies), time.Since(start).Seconds())
	return replies, final, nil
}
