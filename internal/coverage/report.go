// Package coverage scores how thoroughly a student's questions covered
// the requirement areas of an elicitation interview. It consumes finished
// transcripts only and never participates in turn processing.
package coverage

import (
	"strings"

	"github.com/stakesim/stakesim/internal/dialogue"
	"github.com/stakesim/stakesim/internal/persona"
)

// Area is one requirement dimension the student should probe.
type Area string

const (
	AreaFunctional    Area = "functional"
	AreaNonfunctional Area = "nonfunctional"
	AreaConstraints   Area = "constraints"
	AreaStakeholders  Area = "stakeholders"
	AreaRisks         Area = "risks"
	AreaProcess       Area = "process"
)

// AllAreas lists the scored areas in report order.
func AllAreas() []Area {
	return []Area{
		AreaFunctional, AreaNonfunctional, AreaConstraints,
		AreaStakeholders, AreaRisks, AreaProcess,
	}
}

// areaKeywords drives the per-area hit scoring. Each hit keyword found in
// a student question counts toward that area.
var areaKeywords = map[Area][]string{
	AreaFunctional:    {"feature", "function", "should the system", "what does it do", "capability", "workflow", "use case"},
	AreaNonfunctional: {"performance", "fast", "secure", "security", "reliable", "usab", "scale", "available"},
	AreaConstraints:   {"budget", "cost", "deadline", "timeline", "regulat", "compliance", "license", "limit"},
	AreaStakeholders:  {"who", "users", "team", "role", "responsib", "affected", "depend"},
	AreaRisks:         {"risk", "fail", "worry", "concern", "problem", "wrong", "safety", "hazard"},
	AreaProcess:       {"process", "how do you", "currently", "today", "steps", "procedure", "training"},
}

// hitsForFullScore is how many keyword hits saturate an area's score.
const hitsForFullScore = 3

// Report summarizes elicitation coverage for one transcript.
type Report struct {
	// AreaScores holds a [0,1] score per requirement area.
	AreaScores map[Area]float64 `json:"areaScores"`

	// QuestionsPerPersona counts replies drawn from each persona, a
	// proxy for how evenly the student spread their attention.
	QuestionsPerPersona map[string]int `json:"questionsPerPersona"`

	// StudentQuestions is the number of student messages examined.
	StudentQuestions int `json:"studentQuestions"`

	// Overall is the mean of the area scores.
	Overall float64 `json:"overall"`
}

// Score analyzes a finished transcript against the roster.
func Score(messages []dialogue.Message, roster []persona.Persona) *Report {
	report := &Report{
		AreaScores:          make(map[Area]float64, len(areaKeywords)),
		QuestionsPerPersona: make(map[string]int, len(roster)),
	}
	for _, p := range roster {
		report.QuestionsPerPersona[p.Name] = 0
	}

	hits := make(map[Area]int)
	for _, m := range messages {
		switch m.Sender {
		case dialogue.SenderStudent:
			report.StudentQuestions++
			lower := strings.ToLower(m.Content)
			for area, keywords := range areaKeywords {
				for _, kw := range keywords {
					if strings.Contains(lower, kw) {
						hits[area]++
						break
					}
				}
			}
		case dialogue.SenderPersona:
			report.QuestionsPerPersona[m.PersonaName]++
		}
	}

	total := 0.0
	for _, area := range AllAreas() {
		score := float64(hits[area]) / hitsForFullScore
		if score > 1 {
			score = 1
		}
		report.AreaScores[area] = score
		total += score
	}
	report.Overall = total / float64(len(AllAreas()))

	return report
}
