package dialogue

import (
	"context"
	"fmt"
	"strings"
)

// Validator thresholds.
const (
	minValidRunes         = 15
	minCombinedConfidence = 0.5
)

// validate quality-gates the batch of replies just generated. A failing
// batch routes back to whichever generator produced it for one more
// attempt; total retries stay bounded by the interpreter's iteration
// ceiling.
func (e *Engine) validate(ctx context.Context, st *State) (stepOutput, error) {
	batch := st.trailingPersonaMessages(len(st.Engaged))

	clsConfidence := 0.0
	if st.Classification != nil {
		clsConfidence = st.Classification.Confidence
	}

	st.validationFailed = false
	for _, m := range batch {
		if reason, bad := rejectReply(m, clsConfidence); bad {
			e.metrics.ValidatorRetry()
			st.validationFailed = true
			st.note(fmt.Sprintf("validate: rejected %s (%s)", m.PersonaName, reason))
			break
		}
	}

	if !st.validationFailed {
		st.note("validate: batch passed")
	}
	return stepOutput{state: st}, nil
}

// rejectReply applies the quality checks to a single message.
func rejectReply(m Message, classificationConfidence float64) (string, bool) {
	if len([]rune(m.Content)) < minValidRunes {
		return "too short", true
	}
	if isOutOfCharacter(m.Content) {
		return "out-of-character phrase", true
	}
	combined := (classificationConfidence + m.Confidence()) / 2
	if combined < minCombinedConfidence {
		return fmt.Sprintf("combined confidence %.2f too low", combined), true
	}
	lower := strings.ToLower(m.Content)
	if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
		return "contains error text", true
	}
	return "", false
}

// routeAfterValidate retries the producing generator on failure, else
// advances to the formatter.
func routeAfterValidate(st *State) Step {
	if st.validationFailed {
		if st.lastGenerator != "" {
			return st.lastGenerator
		}
		return StepRespond
	}
	return StepFormat
}
