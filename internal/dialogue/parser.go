package dialogue

import (
	"regexp"
	"strings"
)

// Field is an optionally-present value parsed from generated text. Absence
// is a first-class outcome: callers branch on Present instead of testing
// for empty strings.
type Field struct {
	Value   string
	Present bool
}

// topicAnalysis is the structured form of the classifier's generation
// output, one Field per expected line.
type topicAnalysis struct {
	Topic     Field
	General   Field
	Reasoning Field
}

var fieldLineRe = regexp.MustCompile(`(?im)^\s*(topic|general|reasoning)\s*[:=-]\s*(.+)$`)

// parseTopicAnalysis tolerantly extracts the TOPIC / GENERAL / REASONING
// triple from free-form model output. Unknown lines are ignored; repeated
// fields keep the first occurrence.
func parseTopicAnalysis(text string) topicAnalysis {
	var out topicAnalysis
	for _, match := range fieldLineRe.FindAllStringSubmatch(text, -1) {
		key := strings.ToLower(match[1])
		value := strings.TrimSpace(strings.Trim(strings.TrimSpace(match[2]), `"'`))
		if value == "" {
			continue
		}
		switch key {
		case "topic":
			if !out.Topic.Present {
				out.Topic = Field{Value: normalizeTopic(value), Present: true}
			}
		case "general":
			if !out.General.Present {
				out.General = Field{Value: strings.ToLower(value), Present: true}
			}
		case "reasoning":
			if !out.Reasoning.Present {
				out.Reasoning = Field{Value: value, Present: true}
			}
		}
	}
	return out
}

// normalizeTopic lowercases and snake_cases a topic label.
func normalizeTopic(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".!?")
	return strings.Join(strings.Fields(s), "_")
}

// Heuristic fallback tables. All keyword fallbacks live here so ambiguous
// or missing generation output resolves in one place.

// fallbackTopic maps message keywords to topic labels when the generation
// call fails or its output does not parse.
var fallbackTopics = []struct {
	keyword string
	topic   string
}{
	{"safety", "safety"},
	{"hazard", "safety"},
	{"incident", "safety"},
	{"communicat", "communication"},
	{"team", "teamwork"},
	{"collaborat", "teamwork"},
	{"lead", "leadership"},
	{"manag", "leadership"},
	{"train", "training"},
	{"onboard", "training"},
	{"process", "process"},
	{"workflow", "process"},
}

// fallbackTopicFor resolves a topic from the raw student message.
func fallbackTopicFor(message string) string {
	lower := strings.ToLower(message)
	for _, entry := range fallbackTopics {
		if strings.Contains(lower, entry.keyword) {
			return entry.topic
		}
	}
	return "general_inquiry"
}

// collaborationKeywords signal that the student wants the team to work
// something out together.
var collaborationKeywords = []string{
	"discuss", "together", "as a team", "as a group", "decide",
	"consensus", "agree on", "work out", "collaborate", "brainstorm",
}

func containsCollaborationLanguage(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range collaborationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// collaborationGoals maps message keywords to goal tags.
var collaborationGoals = []struct {
	keyword string
	goal    string
}{
	{"tech stack", "tech_stack"},
	{"technology", "tech_stack"},
	{"stack", "tech_stack"},
	{"approach", "approach"},
	{"plan", "plan"},
	{"timeline", "plan"},
	{"requirement", "requirements"},
	{"feature", "requirements"},
	{"architecture", "architecture"},
	{"design", "architecture"},
	{"conflict", "conflict_resolution"},
	{"disagree", "conflict_resolution"},
}

// collaborationGoalFor derives the goal tag for a collaborative message.
func collaborationGoalFor(message string) string {
	lower := strings.ToLower(message)
	for _, entry := range collaborationGoals {
		if strings.Contains(lower, entry.keyword) {
			return entry.goal
		}
	}
	return "general_consensus"
}

// followUpPhrases mark a message as continuing the previous answer.
var followUpPhrases = []string{
	"what about", "why", "how", "tell me more", "can you elaborate",
	"and then", "what else", "go on", "expand on",
}

func looksLikeFollowUp(message string) bool {
	lower := strings.ToLower(message)
	for _, phrase := range followUpPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// roleKeywords flag messages aimed at a particular discipline; short
// messages without any of these are confidently general.
var roleKeywords = []string{
	"manager", "officer", "technician", "engineer", "finance", "budget",
	"safety", "lead", "operations",
}

func containsRoleKeyword(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range roleKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// outOfCharacterPhrases is the validator denylist. A persona reply
// containing any of these breaks the simulation.
var outOfCharacterPhrases = []string{
	"as an ai", "language model", "i cannot", "as a chatbot",
	"i am not able to", "my training data", "i'm an assistant",
	"as a large language",
}

func isOutOfCharacter(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range outOfCharacterPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// personalityVocabulary hints that the reply expresses the persona's
// disposition rather than generic prose.
var personalityVocabulary = []string{
	"i feel", "i worry", "i believe", "honestly", "frankly",
	"in my experience", "i've seen", "personally",
}

func usesPersonalityVocabulary(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range personalityVocabulary {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// collaborativeVocabulary hints at genuine team discussion.
var collaborativeVocabulary = []string{
	"building on", "i agree", "adding to", "we could", "what if we",
	"good point", "to build on", "let's",
}

func usesCollaborativeVocabulary(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range collaborativeVocabulary {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
