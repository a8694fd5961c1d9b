package dialogue

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Classification confidence levels assigned by the heuristics.
const (
	confidenceTargeted     = 0.95
	confidenceFollowUp     = 0.85
	confidenceGeneralHigh  = 0.9
	confidenceGeneralLow   = 0.7
	classifyRetryThreshold = 0.4
)

// shortMessageRunes is the cutoff under which a message without role
// keywords is confidently general.
const shortMessageRunes = 60

// classify inspects the newest student message and fills in the state's
// classification. It fails closed: a missing or non-student newest message
// halts the turn with no replies.
func (e *Engine) classify(ctx context.Context, st *State) (stepOutput, error) {
	msg, ok := st.LatestStudentMessage()
	if !ok {
		e.logger.Warn("classification aborted: newest message missing or not from student")
		st.note("classify: no student message, turn aborted")
		return stepOutput{state: st, halt: true, replies: []Reply{}}, nil
	}

	cls := Classification{Intent: IntentGeneral}

	// Direct targeting: persona name, initials, or role substring.
	lower := strings.ToLower(msg.Content)
	for _, p := range st.Personas {
		if personaMentioned(lower, msg.Content, p.Name, p.Initials, p.Role) {
			cls.TargetPersonas = append(cls.TargetPersonas, p.Name)
		}
	}

	switch {
	case len(cls.TargetPersonas) > 0:
		cls.Intent = IntentTargeted
		cls.Confidence = confidenceTargeted
		cls.Reasoning = fmt.Sprintf("message addresses %s directly", strings.Join(cls.TargetPersonas, ", "))
	case looksLikeFollowUp(msg.Content) && st.LastSpeaker != "":
		cls.Intent = IntentFollowUp
		cls.Confidence = confidenceFollowUp
		cls.Reasoning = fmt.Sprintf("follow-up phrasing after %s spoke", st.LastSpeaker)
	default:
		cls.Intent = IntentGeneral
		if len([]rune(msg.Content)) < shortMessageRunes && !containsRoleKeyword(msg.Content) {
			cls.Confidence = confidenceGeneralHigh
		} else {
			cls.Confidence = confidenceGeneralLow
		}
		cls.Reasoning = "no direct target or follow-up phrasing detected"
	}

	cls.Topic = e.classifyTopic(ctx, msg.Content)

	// Collaboration goals only apply when nobody was singled out.
	if len(cls.TargetPersonas) == 0 &&
		(cls.Intent == IntentGeneral || containsCollaborationLanguage(msg.Content)) &&
		containsCollaborationLanguage(msg.Content) {
		cls.CollaborationGoal = collaborationGoalFor(msg.Content)
	}

	st.Classification = &cls
	st.ContextDescription = refreshContextDescription(st.ContextDescription, cls.Topic)
	st.note(fmt.Sprintf("classify: intent=%s topic=%s confidence=%.2f", cls.Intent, cls.Topic, cls.Confidence))

	e.logger.Debug("classified message",
		zap.String("intent", string(cls.Intent)),
		zap.String("topic", cls.Topic),
		zap.Float64("confidence", cls.Confidence),
		zap.Strings("targets", cls.TargetPersonas))

	return stepOutput{state: st}, nil
}

// classifyTopic asks the generation service for a topic label and falls
// back to the keyword table on failure or unparseable output.
func (e *Engine) classifyTopic(ctx context.Context, message string) string {
	prompt := buildTopicPrompt(message)
	text, err := e.gen.Generate(ctx, prompt, 150, 0.2)
	if err != nil {
		e.logger.Debug("topic generation failed, using keyword fallback", zap.Error(err))
		return fallbackTopicFor(message)
	}

	analysis := parseTopicAnalysis(text)
	if !analysis.Topic.Present {
		return fallbackTopicFor(message)
	}
	return analysis.Topic.Value
}

// refreshContextDescription prepends the new topic to up to three prior
// topics, de-duplicated.
func refreshContextDescription(prior, topic string) string {
	topics := []string{topic}
	for _, t := range strings.Split(prior, ", ") {
		t = strings.TrimSpace(t)
		if t == "" || t == topic {
			continue
		}
		topics = append(topics, t)
		if len(topics) == 4 {
			break
		}
	}
	return strings.Join(topics, ", ")
}

// personaMentioned reports whether the message refers to a persona by
// name, initials, or role. Names and roles match case-insensitively as
// substrings; initials must appear as a standalone uppercase token.
func personaMentioned(lowerMessage, rawMessage, name, initials, role string) bool {
	if name != "" && strings.Contains(lowerMessage, strings.ToLower(name)) {
		return true
	}
	// first-name-only addressing ("Maria, what do you think?")
	if first, _, found := strings.Cut(name, " "); found && len(first) > 2 {
		if containsWord(lowerMessage, strings.ToLower(first)) {
			return true
		}
	}
	if role != "" && strings.Contains(lowerMessage, strings.ToLower(role)) {
		return true
	}
	if initials != "" && len(initials) >= 2 {
		for _, tok := range strings.FieldsFunc(rawMessage, func(r rune) bool {
			return !(r >= 'A' && r <= 'Z')
		}) {
			if tok == initials {
				return true
			}
		}
	}
	return false
}

// containsWord checks for a whole-word, lowercase match.
func containsWord(lowerText, word string) bool {
	for _, tok := range strings.FieldsFunc(lowerText, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if tok == word {
			return true
		}
	}
	return false
}

// routeAfterClassify decides what follows classification: retry on low
// confidence, the memory step on summary-interval turns, otherwise speaker
// selection.
func routeAfterClassify(st *State) Step {
	if st.Classification == nil || st.Classification.Confidence < classifyRetryThreshold {
		return StepClassify
	}
	interval := st.Policy.SummaryInterval
	if interval > 0 && st.TurnCount > 0 && st.TurnCount%interval == 0 {
		return StepMemory
	}
	return StepSelect
}
