package dialogue

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// memoryWindow is how many trailing messages feed the summary refresh.
const memoryWindow = 20

// summarizeMemory compresses older history into the rolling summary. Any
// failure keeps the previous summary; the turn is never blocked on memory.
func (e *Engine) summarizeMemory(ctx context.Context, st *State) (stepOutput, error) {
	msgs := st.Messages
	if len(msgs) > memoryWindow {
		msgs = msgs[len(msgs)-memoryWindow:]
	}

	prompt := buildSummaryPrompt(st.Summary, msgs)
	text, err := e.gen.Generate(ctx, prompt, 200, 0.3)
	if err != nil || strings.TrimSpace(text) == "" {
		e.logger.Debug("summary refresh failed, keeping previous summary", zap.Error(err))
		st.note("memory: refresh failed, summary unchanged")
		return stepOutput{state: st, next: StepSelect}, nil
	}

	st.Summary = strings.TrimSpace(text)
	st.SummaryRefreshed = true
	st.note("memory: rolling summary refreshed")

	return stepOutput{state: st, next: StepSelect}, nil
}
