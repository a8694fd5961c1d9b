package dialogue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/stakesim/stakesim/internal/persona"
)

// Confidence ladder for individual responses.
const (
	confidenceBaseline     = 0.7
	confidenceTargetBoost  = 0.95
	confidenceTopicBoost   = 0.85
	confidenceFallback     = 0.3
	scaleOutOfCharacter    = 0.2
	scaleTooShort          = 0.6
	scalePersonality       = 1.1
	scalePersonalityStrong = 1.2

	minReplyRunes = 20
)

// fallbackLines are canned persona-flavored replies used when generation
// fails. The %s slots take the persona's role.
var fallbackLines = []string{
	"Speaking as the %s, I need a moment to gather my thoughts on that one.",
	"That touches on a lot of what I deal with as %s. Let me come back to it once I've checked my notes.",
	"Good question. From the %s side of things it's complicated, ask me again in a bit.",
	"As %s I want to give you an accurate answer, so let me think that over.",
}

// respond generates one independent reply per engaged persona, awaiting
// each call before the next so the sequential shape matches the
// collaborative path.
func (e *Engine) respond(ctx context.Context, st *State) (stepOutput, error) {
	student, _ := st.LatestStudentMessage()

	engaged := st.Engaged
	if len(st.Personas) > 1 {
		engaged = excludeByName(append([]persona.Persona(nil), engaged...), st.LastSpeaker)
	}

	// Engagement can come up empty after exclusion; substitute one
	// alternate speaker rather than producing a silent turn.
	if len(engaged) == 0 && len(st.Personas) > 1 {
		if alt, ok := anyOtherPersona(st.Personas, st.LastSpeaker); ok {
			engaged = []persona.Persona{alt}
			st.note(fmt.Sprintf("respond: substituted %s for empty engagement", alt.Name))
		}
	}

	var produced []Message
	for _, p := range engaged {
		msg := e.generateReply(ctx, p, st, student.Content)
		st.Messages = append(st.Messages, msg)
		produced = append(produced, msg)
	}

	finishTurn(st, produced)
	st.lastGenerator = StepRespond
	st.note(fmt.Sprintf("respond: %d replies", len(produced)))

	return stepOutput{state: st}, nil
}

// generateReply runs one persona's generation call, scoring confidence and
// degrading to a canned fallback on failure.
func (e *Engine) generateReply(ctx context.Context, p persona.Persona, st *State, studentMessage string) Message {
	prompt := buildResponsePrompt(p, st, studentMessage)

	text, err := e.gen.Generate(ctx, prompt, e.maxTokens, e.temperature)
	if err != nil {
		e.metrics.GenerationFallback()
		e.logger.Warn("generation failed, using canned fallback",
			zap.String("persona", p.Name), zap.Error(err))
		line := fallbackLines[e.rng.Intn(len(fallbackLines))]
		msg := NewPersonaMessage(p.Name, fmt.Sprintf(line, p.Role), confidenceFallback,
			"generation failed, canned fallback")
		return msg.withMeta(MetaFallback, true)
	}

	text = strings.TrimSpace(text)
	text = truncateReply(text, st.Policy.MaxResponseLength)

	confidence, reasoning := e.scoreReply(p, st, text)
	return NewPersonaMessage(p.Name, text, confidence, reasoning)
}

// scoreReply applies the confidence ladder to a generated reply.
func (e *Engine) scoreReply(p persona.Persona, st *State, text string) (float64, string) {
	confidence := confidenceBaseline
	reasoning := "baseline individual response"

	cls := st.Classification
	topic := ""
	if cls != nil {
		topic = strings.ReplaceAll(cls.Topic, "_", " ")
		if containsName(cls.TargetPersonas, p.Name) {
			confidence = confidenceTargetBoost
			reasoning = "persona was directly addressed"
		} else if topic != "" && strings.Contains(p.ProfileText(), topic) {
			confidence = confidenceTopicBoost
			reasoning = "topic matches persona profile"
		}
	}

	switch {
	case isOutOfCharacter(text):
		confidence *= scaleOutOfCharacter
		reasoning += "; reply judged out of character"
	case len([]rune(text)) < minReplyRunes:
		confidence *= scaleTooShort
		reasoning += "; reply suspiciously short"
	case usesPersonalityVocabulary(text):
		if st.Policy.EmphasizePersonality {
			confidence *= scalePersonalityStrong
		} else {
			confidence *= scalePersonality
		}
		reasoning += "; personality vocabulary detected"
	}

	if confidence > 1 {
		confidence = 1
	}
	return confidence, reasoning
}

// finishTurn applies the shared post-generation bookkeeping: lastSpeaker
// is set only for single-reply turns, and the recency window advances.
func finishTurn(st *State, produced []Message) {
	if len(produced) == 1 {
		st.LastSpeaker = produced[0].PersonaName
	} else {
		st.LastSpeaker = ""
	}
	for _, m := range produced {
		st.pushRecentSpeaker(m.PersonaName)
	}
}

// truncateReply enforces the instructor's max reply length.
func truncateReply(text string, maxLen int) string {
	if maxLen <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "…"
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
