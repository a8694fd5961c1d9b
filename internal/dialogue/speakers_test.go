package dialogue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakesim/stakesim/internal/llm"
	"github.com/stakesim/stakesim/internal/persona"
)

func selectState(t *testing.T, e *Engine, st *State) *State {
	t.Helper()
	out, err := e.selectSpeakers(context.Background(), st.Clone())
	require.NoError(t, err)
	return out.state
}

func TestSelectSpeakers_Targeted(t *testing.T) {
	e := newTestEngine(llm.NewStaticGenerator(), 1)
	st := stateWithStudentMessage(testRoster(), "Maria?")
	st.Classification = &Classification{
		Intent:         IntentTargeted,
		TargetPersonas: []string{"Maria Lopez"},
		Confidence:     0.95,
	}

	got := selectState(t, e, st)

	require.Len(t, got.Engaged, 1)
	assert.Equal(t, "Maria Lopez", got.Engaged[0].Name)
	assert.Equal(t, 1, got.TurnCounts["Maria Lopez"])
}

func TestSelectSpeakers_RequireAllPolicy(t *testing.T) {
	e := newTestEngine(llm.NewStaticGenerator(), 1)
	st := stateWithStudentMessage(testRoster(), "hello everyone")
	st.Policy.RequireAllPersonas = true
	st.Classification = &Classification{Intent: IntentGeneral, Confidence: 0.9}

	got := selectState(t, e, st)

	assert.Len(t, got.Engaged, 3)
}

func TestSelectSpeakers_GeneralNeverIncludesLastSpeaker(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		e := newTestEngine(llm.NewStaticGenerator(), seed)
		st := stateWithStudentMessage(testRoster(), "what should I know?")
		st.LastSpeaker = "David Kim"
		st.Classification = &Classification{Intent: IntentGeneral, Confidence: 0.9}

		got := selectState(t, e, st)

		require.NotEmpty(t, got.Engaged)
		for _, p := range got.Engaged {
			assert.NotEqual(t, "David Kim", p.Name, "seed %d", seed)
		}
	}
}

func TestSelectSpeakers_SinglePersonaRoster(t *testing.T) {
	roster := testRoster()[:1]
	e := newTestEngine(llm.NewStaticGenerator(), 1)

	st := stateWithStudentMessage(roster, "and what about costs?")
	st.LastSpeaker = "Maria Lopez" // spoke last turn too
	st.Classification = &Classification{Intent: IntentGeneral, Confidence: 0.9}

	got := selectState(t, e, st)

	require.Len(t, got.Engaged, 1)
	assert.Equal(t, "Maria Lopez", got.Engaged[0].Name)
	assert.Empty(t, got.LastSpeaker, "single-persona roster clears lastSpeaker so it may speak again")
}

func TestSelectSpeakers_ForcedSpeakingOrder(t *testing.T) {
	e := newTestEngine(llm.NewStaticGenerator(), 1)

	for turn, want := range map[int]string{
		0: "Priya Sharma",
		1: "Maria Lopez",
		2: "Priya Sharma",
	} {
		st := stateWithStudentMessage(testRoster(), "status update please")
		st.TurnCount = turn
		st.Policy.SpeakingOrder = []string{"Priya Sharma", "Maria Lopez"}
		st.Classification = &Classification{Intent: IntentGeneral, Confidence: 0.9}

		got := selectState(t, e, st)

		require.Len(t, got.Engaged, 1, "turn %d", turn)
		assert.Equal(t, want, got.Engaged[0].Name, "turn %d", turn)
	}
}

func TestSelectSpeakers_FallbackWhenSelectionEmpties(t *testing.T) {
	roster := testRoster()[:2]
	e := newTestEngine(llm.NewStaticGenerator(), 1)

	st := stateWithStudentMessage(roster, "ok")
	st.LastSpeaker = "Maria Lopez"
	st.Classification = &Classification{
		Intent:         IntentTargeted,
		TargetPersonas: []string{"Maria Lopez"},
		Confidence:     0.95,
	}

	got := selectState(t, e, st)

	// the only target was the last speaker, so selection falls back to
	// the other roster member
	require.Len(t, got.Engaged, 1)
	assert.Equal(t, "David Kim", got.Engaged[0].Name)
}

func TestFairnessScore_UnderUsedPersonaWins(t *testing.T) {
	e := newTestEngine(llm.NewStaticGenerator(), 1)
	st := stateWithStudentMessage(testRoster(), "general question")
	st.TurnCounts = map[string]int{
		"Maria Lopez":  5,
		"David Kim":    5,
		"Priya Sharma": 0,
	}

	avg := averageTurnCount(st)
	quiet := e.fairnessScore(st, st.Personas[2], avg, "general_inquiry")
	busy1 := e.fairnessScore(st, st.Personas[0], avg, "general_inquiry")
	busy2 := e.fairnessScore(st, st.Personas[1], avg, "general_inquiry")

	assert.Greater(t, quiet, busy1)
	assert.Greater(t, quiet, busy2)
}

func TestFairnessScore_Penalties(t *testing.T) {
	e := newTestEngine(llm.NewStaticGenerator(), 1)
	st := stateWithStudentMessage(testRoster(), "hm")
	st.LastSpeaker = "Maria Lopez"
	st.RecentSpeakers = []string{"David Kim", "Maria Lopez"}

	maria := e.fairnessScore(st, st.Personas[0], 0, "")
	// base 1.0 - lastSpeaker 0.8 - recent window 0.6 - previous speaker 0.4
	assert.InDelta(t, -0.8, maria, 0.001)

	david := e.fairnessScore(st, st.Personas[1], 0, "")
	// base 1.0 - recent window 0.6
	assert.InDelta(t, 0.4, david, 0.001)
}

func TestFairnessScore_TopicBoost(t *testing.T) {
	e := newTestEngine(llm.NewStaticGenerator(), 1)
	st := stateWithStudentMessage(testRoster(), "hm")

	// David Kim's profile mentions safety
	david := e.fairnessScore(st, st.Personas[1], 0, "safety")
	priya := e.fairnessScore(st, st.Personas[2], 0, "safety")
	assert.Greater(t, david, priya)
}

func TestSelectByFairness_CountScalesWithConfidence(t *testing.T) {
	e := newTestEngine(llm.NewStaticGenerator(), 1)
	roster := append(testRoster(), persona.Persona{Name: "Ana Ferreira", Role: "Team Lead"})

	st := stateWithStudentMessage(roster, "hello")
	high := e.selectByFairness(st, &Classification{Intent: IntentGeneral, Confidence: 1.0})
	assert.Len(t, high, 3)

	st2 := stateWithStudentMessage(roster, "hello")
	low := e.selectByFairness(st2, &Classification{Intent: IntentGeneral, Confidence: 0.5})
	assert.Len(t, low, 2)
}

func TestRouteAfterSelect(t *testing.T) {
	st := stateWithStudentMessage(testRoster(), "x")
	st.Engaged = st.Personas[:2]

	st.Classification = &Classification{CollaborationGoal: "plan"}
	assert.Equal(t, StepCollaborate, routeAfterSelect(st))

	st.Classification = &Classification{}
	assert.Equal(t, StepRespond, routeAfterSelect(st))

	// collaboration needs more than one engaged persona
	st.Classification = &Classification{CollaborationGoal: "plan"}
	st.Engaged = st.Personas[:1]
	assert.Equal(t, StepRespond, routeAfterSelect(st))
}
