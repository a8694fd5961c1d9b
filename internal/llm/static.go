package llm

import (
	"context"
	"sync"
)

// StaticGenerator is a deterministic Generator for tests and offline use.
// It replays a fixed sequence of responses and records every prompt it saw.
type StaticGenerator struct {
	mu        sync.Mutex
	responses []string
	idx       int
	err       error

	// Prompts holds every prompt passed to Generate, in call order.
	Prompts []string
}

// NewStaticGenerator returns a generator that cycles through responses.
// With no responses it returns a generic line.
func NewStaticGenerator(responses ...string) *StaticGenerator {
	return &StaticGenerator{responses: responses}
}

// FailWith makes all subsequent Generate calls return err.
func (g *StaticGenerator) FailWith(err error) *StaticGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
	return g
}

// Generate records the prompt and returns the next canned response.
func (g *StaticGenerator) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Prompts = append(g.Prompts, prompt)

	if g.err != nil {
		return "", g.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(g.responses) == 0 {
		return "That is an interesting question, let me think it through from my side of the project.", nil
	}
	resp := g.responses[g.idx%len(g.responses)]
	g.idx++
	return resp, nil
}

var _ Generator = (*StaticGenerator)(nil)
