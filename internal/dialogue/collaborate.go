package dialogue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/stakesim/stakesim/internal/persona"
)

// Collaborative-mode confidence scoring.
const (
	confidenceCollabBase    = 0.85
	bonusCollabVocabulary   = 1.1
	bonusQuestionAsked      = 1.05
	bonusTeammateNamed      = 1.1
	challengeOdds           = 0.4
	consensusRoundThreshold = 3
)

// collaborate runs a sequential discussion round: each persona's prompt
// includes the replies teammates already produced this turn, so later
// speakers can reference earlier ones.
func (e *Engine) collaborate(ctx context.Context, st *State) (stepOutput, error) {
	student, _ := st.LatestStudentMessage()
	goal := ""
	if st.Classification != nil {
		goal = st.Classification.CollaborationGoal
	}

	var round []Message
	for i, p := range st.Engaged {
		challenge := i > 0 && e.rng.Float64() < challengeOdds
		prompt := buildCollaborativePrompt(p, st, student.Content, goal, round, challenge)

		text, err := e.gen.Generate(ctx, prompt, e.maxTokens, e.temperature)
		if err != nil {
			e.metrics.GenerationFallback()
			e.logger.Warn("collaborative generation failed, using canned fallback",
				zap.String("persona", p.Name), zap.Error(err))
			text = fmt.Sprintf(fallbackLines[e.rng.Intn(len(fallbackLines))], p.Role)
		}
		text = truncateReply(strings.TrimSpace(text), st.Policy.MaxResponseLength)

		confidence, reasoning := e.scoreCollaborativeReply(st, p, text)
		msg := NewPersonaMessage(p.Name, text, confidence, reasoning).
			withMeta(MetaDiscussionRound, true).
			withMeta(MetaSpeakingOrder, i+1).
			withMeta(MetaCollaborationGoal, goal)

		round = append(round, msg)
		st.Messages = append(st.Messages, msg)
	}

	finishTurn(st, round)
	st.lastGenerator = StepCollaborate
	st.CollaborationFired = true
	st.note(fmt.Sprintf("collaborate: %d speakers toward %s", len(round), goal))

	return stepOutput{state: st}, nil
}

// scoreCollaborativeReply starts above the individual baseline and rewards
// discussion behavior: collaborative vocabulary, questions, and naming
// teammates.
func (e *Engine) scoreCollaborativeReply(st *State, p persona.Persona, text string) (float64, string) {
	confidence := confidenceCollabBase
	reasoning := "collaborative discussion response"

	if usesCollaborativeVocabulary(text) {
		confidence *= bonusCollabVocabulary
		reasoning += "; collaborative vocabulary"
	}
	if strings.Contains(text, "?") {
		confidence *= bonusQuestionAsked
		reasoning += "; asks the team a question"
	}
	lower := strings.ToLower(text)
	for _, other := range st.Engaged {
		if other.Name == p.Name {
			continue
		}
		if first, _, _ := strings.Cut(other.Name, " "); first != "" && strings.Contains(lower, strings.ToLower(first)) {
			confidence *= bonusTeammateNamed
			reasoning += "; references a teammate by name"
			break
		}
	}
	if isOutOfCharacter(text) {
		confidence *= scaleOutOfCharacter
		reasoning += "; reply judged out of character"
	}

	if confidence > 1 {
		confidence = 1
	}
	return confidence, reasoning
}

// routeAfterCollaborate fires the consensus summarizer once enough
// discussion-flagged messages exist for the active goal.
func routeAfterCollaborate(st *State) Step {
	goal := ""
	if st.Classification != nil {
		goal = st.Classification.CollaborationGoal
	}
	if goal != "" && st.discussionRoundCount(goal) >= consensusRoundThreshold {
		return StepConsensus
	}
	return StepValidate
}

// summarizeConsensus asks for a team-consensus statement, appends it as a
// system message, and records it under the active goal.
func (e *Engine) summarizeConsensus(ctx context.Context, st *State) (stepOutput, error) {
	goal := ""
	if st.Classification != nil {
		goal = st.Classification.CollaborationGoal
	}

	var round []Message
	for _, m := range st.Messages {
		if m.IsDiscussionRound() && m.CollaborationGoal() == goal {
			round = append(round, m)
		}
	}

	prompt := buildConsensusPrompt(goal, round)
	text, err := e.gen.Generate(ctx, prompt, 150, 0.3)
	if err != nil || strings.TrimSpace(text) == "" {
		e.logger.Debug("consensus generation failed, skipping summary", zap.Error(err))
		st.note("consensus: generation failed, no summary")
		return stepOutput{state: st, next: StepValidate}, nil
	}

	statement := strings.TrimSpace(text)
	st.Messages = append(st.Messages, NewSystemMessage(statement, map[string]any{
		MetaCollaborationGoal: goal,
	}))
	st.Consensus[goal] = append(st.Consensus[goal], statement)
	st.ConsensusEmitted = true
	st.note(fmt.Sprintf("consensus: recorded statement for %s", goal))

	return stepOutput{state: st, next: StepValidate}, nil
}
