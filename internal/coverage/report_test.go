package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakesim/stakesim/internal/dialogue"
	"github.com/stakesim/stakesim/internal/persona"
)

var roster = []persona.Persona{
	{Name: "Maria Lopez", Role: "Operations Manager"},
	{Name: "David Kim", Role: "Safety Officer"},
}

func TestScore_EmptyTranscript(t *testing.T) {
	report := Score(nil, roster)

	assert.Zero(t, report.StudentQuestions)
	assert.Zero(t, report.Overall)
	for _, area := range AllAreas() {
		assert.Zero(t, report.AreaScores[area])
	}
	// roster members appear even when they never spoke
	assert.Contains(t, report.QuestionsPerPersona, "Maria Lopez")
	assert.Contains(t, report.QuestionsPerPersona, "David Kim")
}

func TestScore_AreaSaturation(t *testing.T) {
	msgs := []dialogue.Message{
		dialogue.NewStudentMessage("What risks worry you most?"),
		dialogue.NewStudentMessage("What could go wrong during rollout?"),
		dialogue.NewStudentMessage("Any safety concerns on the floor?"),
		dialogue.NewStudentMessage("And a fourth risk question for good measure?"),
	}

	report := Score(msgs, roster)

	assert.Equal(t, 4, report.StudentQuestions)
	assert.Equal(t, 1.0, report.AreaScores[AreaRisks], "three hits saturate an area")
	assert.Zero(t, report.AreaScores[AreaConstraints])
}

func TestScore_OneHitIsPartialCredit(t *testing.T) {
	msgs := []dialogue.Message{
		dialogue.NewStudentMessage("What is the budget for this project?"),
	}

	report := Score(msgs, roster)

	assert.InDelta(t, 1.0/3.0, report.AreaScores[AreaConstraints], 0.001)
}

func TestScore_QuestionCountsHitOnceAcrossKeywords(t *testing.T) {
	// one question mentioning two risk keywords still counts as one hit
	msgs := []dialogue.Message{
		dialogue.NewStudentMessage("What risks or problems keep you up at night?"),
	}

	report := Score(msgs, roster)
	assert.InDelta(t, 1.0/3.0, report.AreaScores[AreaRisks], 0.001)
}

func TestScore_PersonaAttention(t *testing.T) {
	msgs := []dialogue.Message{
		dialogue.NewStudentMessage("Who uses the system today?"),
		dialogue.NewPersonaMessage("Maria Lopez", "Mostly the depot crews.", 0.9, "t"),
		dialogue.NewPersonaMessage("Maria Lopez", "And the dispatchers, occasionally.", 0.9, "t"),
		dialogue.NewPersonaMessage("David Kim", "Safety reviews everything monthly.", 0.9, "t"),
		dialogue.NewSystemMessage("The team agrees on a phased rollout.", nil),
	}

	report := Score(msgs, roster)

	assert.Equal(t, 2, report.QuestionsPerPersona["Maria Lopez"])
	assert.Equal(t, 1, report.QuestionsPerPersona["David Kim"])
	assert.Equal(t, 1, report.StudentQuestions)
}

func TestScore_OverallIsMeanOfAreas(t *testing.T) {
	msgs := []dialogue.Message{
		dialogue.NewStudentMessage("What features do you need, and who uses them?"),
	}

	report := Score(msgs, roster)
	require.Len(t, report.AreaScores, len(AllAreas()))

	var sum float64
	for _, s := range report.AreaScores {
		sum += s
	}
	assert.InDelta(t, sum/float64(len(AllAreas())), report.Overall, 0.001)
}
