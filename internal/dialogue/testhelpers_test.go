package dialogue

import (
	"math/rand"

	"github.com/stakesim/stakesim/internal/llm"
	"github.com/stakesim/stakesim/internal/persona"
)

// testRoster returns the three-persona roster most tests use.
func testRoster() []persona.Persona {
	return []persona.Persona{
		{
			Name:        "Maria Lopez",
			Initials:    "ML",
			Role:        "Operations Manager",
			Goal:        "keep operations running",
			Concerns:    "safety training and process disruption",
			Personality: "pragmatic",
		},
		{
			Name:        "David Kim",
			Initials:    "DK",
			Role:        "Safety Officer",
			Goal:        "meet safety requirements",
			Concerns:    "incident reporting",
			Personality: "cautious",
		},
		{
			Name:        "Priya Sharma",
			Initials:    "PS",
			Role:        "Field Technician",
			Goal:        "usable tools in the field",
			Concerns:    "communication with dispatch",
			Personality: "direct",
		},
	}
}

// newTestEngine builds an engine with a deterministic random source.
func newTestEngine(gen llm.Generator, seed int64) *Engine {
	return NewEngine(gen, WithRand(rand.New(rand.NewSource(seed))))
}

// stateWithStudentMessage builds a state whose newest entry is a student
// message, the shape every turn starts from.
func stateWithStudentMessage(roster []persona.Persona, text string) *State {
	st := NewState(roster, nil, InstructorPolicy{})
	st.TurnCount = 1
	st.Messages = append(st.Messages, NewStudentMessage(text))
	return st
}
