package dialogue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakesim/stakesim/internal/llm"
)

func TestCollaborate_LaterSpeakersSeeEarlierReplies(t *testing.T) {
	first := "I think we should start from the dispatch workflow and build outward."
	second := "Building on that, the dispatch workflow is where most delays hide."
	gen := llm.NewStaticGenerator(first, second)
	e := newTestEngine(gen, 1)

	st := stateWithStudentMessage(testRoster()[:2], "Let's discuss the plan as a team")
	st.Classification = &Classification{
		Intent:            IntentGeneral,
		Confidence:        0.9,
		CollaborationGoal: "plan",
	}
	st.Engaged = st.Personas

	out, err := e.collaborate(context.Background(), st)
	require.NoError(t, err)

	// the second persona's prompt must contain the first reply verbatim
	require.Len(t, gen.Prompts, 2)
	assert.NotContains(t, gen.Prompts[0], first)
	assert.Contains(t, gen.Prompts[1], first)

	batch := out.state.trailingPersonaMessages(2)
	require.Len(t, batch, 2)
	assert.True(t, batch[0].IsDiscussionRound())
	assert.Equal(t, "plan", batch[0].CollaborationGoal())
	assert.Equal(t, 1, batch[0].Meta[MetaSpeakingOrder])
	assert.Equal(t, 2, batch[1].Meta[MetaSpeakingOrder])
	assert.True(t, out.state.CollaborationFired)
	assert.Equal(t, StepCollaborate, out.state.lastGenerator)
}

func TestCollaborate_FirstSpeakerOpensDiscussion(t *testing.T) {
	gen := llm.NewStaticGenerator("We need to align on scope before anything else, what does everyone think?")
	e := newTestEngine(gen, 1)

	st := stateWithStudentMessage(testRoster()[:2], "Decide together on the approach")
	st.Classification = &Classification{Confidence: 0.9, CollaborationGoal: "approach"}
	st.Engaged = st.Personas

	_, err := e.collaborate(context.Background(), st)
	require.NoError(t, err)

	require.NotEmpty(t, gen.Prompts)
	assert.Contains(t, gen.Prompts[0], "You speak first")
}

func TestScoreCollaborativeReply_Bonuses(t *testing.T) {
	e := newTestEngine(llm.NewStaticGenerator(), 1)
	st := stateWithStudentMessage(testRoster(), "discuss")
	st.Engaged = st.Personas

	// plain statement gets the collaborative baseline
	conf, _ := e.scoreCollaborativeReply(st, st.Personas[0], "The rollout should wait until after the audit window closes.")
	assert.InDelta(t, 0.85, conf, 0.001)

	// naming a teammate earns a bonus
	conf, reason := e.scoreCollaborativeReply(st, st.Personas[0], "The rollout should wait, and David made that exact point earlier.")
	assert.InDelta(t, 0.85*1.1, conf, 0.001)
	assert.Contains(t, reason, "teammate")

	// questions earn a bonus
	conf, _ = e.scoreCollaborativeReply(st, st.Personas[0], "The audit window closes in March, could that work for everyone?")
	assert.InDelta(t, 0.85*1.05, conf, 0.001)
}

func TestRouteAfterCollaborate_ConsensusThreshold(t *testing.T) {
	st := stateWithStudentMessage(testRoster(), "x")
	st.Classification = &Classification{CollaborationGoal: "plan"}

	flagged := func(name string) Message {
		return NewPersonaMessage(name, "We should phase the rollout across both depots first.", 0.9, "t").
			withMeta(MetaDiscussionRound, true).
			withMeta(MetaCollaborationGoal, "plan")
	}

	st.Messages = append(st.Messages, flagged("Maria Lopez"), flagged("David Kim"))
	assert.Equal(t, StepValidate, routeAfterCollaborate(st))

	st.Messages = append(st.Messages, flagged("Priya Sharma"))
	assert.Equal(t, StepConsensus, routeAfterCollaborate(st))

	// other goals do not count toward this goal's threshold
	st2 := stateWithStudentMessage(testRoster(), "x")
	st2.Classification = &Classification{CollaborationGoal: "approach"}
	st2.Messages = append(st2.Messages, flagged("Maria Lopez"), flagged("David Kim"), flagged("Priya Sharma"))
	assert.Equal(t, StepValidate, routeAfterCollaborate(st2))
}

func TestSummarizeConsensus_AppendsSystemMessage(t *testing.T) {
	gen := llm.NewStaticGenerator("The team agrees to phase the rollout depot by depot.")
	e := newTestEngine(gen, 1)

	st := stateWithStudentMessage(testRoster(), "x")
	st.Classification = &Classification{CollaborationGoal: "plan"}

	out, err := e.summarizeConsensus(context.Background(), st)
	require.NoError(t, err)
	require.Equal(t, StepValidate, out.next)

	last, ok := out.state.LatestMessage()
	require.True(t, ok)
	assert.Equal(t, SenderSystem, last.Sender)
	assert.Empty(t, last.PersonaName)
	assert.Contains(t, last.Content, "The team agrees")
	assert.Equal(t, []string{"The team agrees to phase the rollout depot by depot."}, out.state.Consensus["plan"])
	assert.True(t, out.state.ConsensusEmitted)
}

func TestSummarizeConsensus_SkipsOnFailure(t *testing.T) {
	gen := llm.NewStaticGenerator("")
	e := newTestEngine(gen, 1)

	st := stateWithStudentMessage(testRoster(), "x")
	st.Classification = &Classification{CollaborationGoal: "plan"}
	before := len(st.Messages)

	out, err := e.summarizeConsensus(context.Background(), st)
	require.NoError(t, err)
	assert.Len(t, out.state.Messages, before)
	assert.Empty(t, out.state.Consensus["plan"])
}
