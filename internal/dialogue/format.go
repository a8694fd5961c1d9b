package dialogue

import (
	"context"
	"fmt"
)

// formatOutput is the terminal step: it packages the turn's persona
// messages as the reply list and signals the interpreter to stop.
func (e *Engine) formatOutput(ctx context.Context, st *State) (stepOutput, error) {
	batch := st.trailingPersonaMessages(len(st.Engaged))

	replies := make([]Reply, 0, len(batch))
	for _, m := range batch {
		reasoning, _ := m.Meta[MetaReasoning].(string)
		replies = append(replies, Reply{
			PersonaName: m.PersonaName,
			Content:     m.Content,
			ID:          m.ID,
			Confidence:  m.Confidence(),
			Reasoning:   reasoning,
		})
	}

	st.note(fmt.Sprintf("format: %d replies packaged", len(replies)))
	return stepOutput{state: st, halt: true, replies: replies}, nil
}
