package dialogue

import (
	"time"

	"github.com/google/uuid"

	"github.com/stakesim/stakesim/internal/persona"
)

// Sender tags who authored a message.
type Sender string

const (
	SenderStudent Sender = "student"
	SenderPersona Sender = "persona"
	SenderSystem  Sender = "system"
)

// Metadata keys attached to generated messages.
const (
	MetaConfidence        = "confidence"
	MetaReasoning         = "reasoning"
	MetaDiscussionRound   = "discussion_round"
	MetaSpeakingOrder     = "speaking_order"
	MetaCollaborationGoal = "collaboration_goal"
	MetaFallback          = "fallback"
)

// Message is an append-only transcript entry.
type Message struct {
	ID          string         `json:"id"`
	Sender      Sender         `json:"sender"`
	PersonaName string         `json:"personaName,omitempty"`
	Content     string         `json:"content"`
	CreatedAt   time.Time      `json:"createdAt"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// NewStudentMessage creates a transcript entry for a student utterance.
func NewStudentMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    SenderStudent,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewPersonaMessage creates a persona reply with confidence and reasoning
// metadata. Every persona message carries both.
func NewPersonaMessage(name, content string, confidence float64, reasoning string) Message {
	return Message{
		ID:          uuid.NewString(),
		Sender:      SenderPersona,
		PersonaName: name,
		Content:     content,
		CreatedAt:   time.Now(),
		Meta: map[string]any{
			MetaConfidence: confidence,
			MetaReasoning:  reasoning,
		},
	}
}

// NewSystemMessage creates a system-authored transcript entry.
func NewSystemMessage(content string, meta map[string]any) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    SenderSystem,
		Content:   content,
		CreatedAt: time.Now(),
		Meta:      meta,
	}
}

// Confidence returns the message confidence, or 0 when absent.
func (m Message) Confidence() float64 {
	if m.Meta == nil {
		return 0
	}
	if v, ok := m.Meta[MetaConfidence].(float64); ok {
		return v
	}
	return 0
}

// IsDiscussionRound reports whether the message was produced during a
// collaborative discussion round.
func (m Message) IsDiscussionRound() bool {
	if m.Meta == nil {
		return false
	}
	v, _ := m.Meta[MetaDiscussionRound].(bool)
	return v
}

// CollaborationGoal returns the goal tag attached to the message, if any.
func (m Message) CollaborationGoal() string {
	if m.Meta == nil {
		return ""
	}
	v, _ := m.Meta[MetaCollaborationGoal].(string)
	return v
}

// withMeta returns a copy of the message with an extra metadata entry.
func (m Message) withMeta(key string, value any) Message {
	meta := make(map[string]any, len(m.Meta)+1)
	for k, v := range m.Meta {
		meta[k] = v
	}
	meta[key] = value
	m.Meta = meta
	return m
}

// Intent classifies a student message.
type Intent string

const (
	IntentTargeted Intent = "targeted"
	IntentFollowUp Intent = "follow_up"
	IntentGeneral  Intent = "general"
)

// Classification is the result of the classification step.
type Classification struct {
	Intent            Intent   `json:"intent"`
	TargetPersonas    []string `json:"targetPersonas,omitempty"`
	Topic             string   `json:"topic"`
	Confidence        float64  `json:"confidence"`
	Reasoning         string   `json:"reasoning"`
	CollaborationGoal string   `json:"collaborationGoal,omitempty"`
}

// InstructorPolicy holds the instructor-configurable dialogue switches.
type InstructorPolicy struct {
	// RequireAllPersonas makes every roster member answer every turn.
	RequireAllPersonas bool `json:"requireAllPersonas" koanf:"require_all_personas"`

	// MaxResponseLength hard-truncates replies when positive.
	MaxResponseLength int `json:"maxResponseLength" koanf:"max_response_length"`

	// SpeakingOrder forces a fixed round-robin order by persona name.
	SpeakingOrder []string `json:"speakingOrder,omitempty" koanf:"speaking_order"`

	// EmphasizePersonality strengthens personality instructions in prompts.
	EmphasizePersonality bool `json:"emphasizePersonality" koanf:"emphasize_personality"`

	// SummaryInterval is the turn interval at which memory is summarized.
	SummaryInterval int `json:"summaryInterval" koanf:"summary_interval"`
}

// DefaultSummaryInterval applies when the policy leaves the interval unset.
const DefaultSummaryInterval = 20

// Normalized returns the policy with defaults filled in.
func (p InstructorPolicy) Normalized() InstructorPolicy {
	if p.SummaryInterval <= 0 {
		p.SummaryInterval = DefaultSummaryInterval
	}
	return p
}

// Reply is one persona answer delivered to the presentation layer.
type Reply struct {
	PersonaName string  `json:"personaName"`
	Content     string  `json:"content"`
	ID          string  `json:"id"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning,omitempty"`
}

// recencyWindowCap bounds the tracked speaker history.
const recencyWindowCap = 8

// State is the conversation value threaded through the step graph. Steps
// never mutate a received state; they Clone it and return the copy, which
// keeps the interpreter replayable and free of aliasing hazards.
type State struct {
	// Personas is the full roster. Never filtered or mutated in place.
	Personas []persona.Persona

	// Engaged is the working subset selected to respond this turn.
	Engaged []persona.Persona

	// Messages is the ordered transcript including this turn's entries.
	Messages []Message

	// LastSpeaker is the persona that spoke alone last turn, or "".
	LastSpeaker string

	// ContextDescription is a short free-text digest of recent topics.
	ContextDescription string

	// Summary is the rolling long-term memory summary.
	Summary string

	// TurnCounts tracks cumulative speaking turns per persona name.
	TurnCounts map[string]int

	// RecentSpeakers is the FIFO recency window, at most 8 entries.
	RecentSpeakers []string

	// Policy is the active instructor policy (normalized).
	Policy InstructorPolicy

	// Classification is the most recent classification result.
	Classification *Classification

	// Consensus maps collaboration goal tags to consensus statements.
	Consensus map[string][]string

	// TurnCount increases once per student turn.
	TurnCount int

	// Iterations counts interpreter steps for the current invocation.
	Iterations int

	// lastGenerator remembers which generator produced the current batch
	// so the validator can route a retry back to it.
	lastGenerator Step

	// validationFailed flags the current batch for regeneration.
	validationFailed bool

	// RoutingNotes collects human-readable routing decisions for the
	// diagnostics envelope.
	RoutingNotes []string

	// CollaborationFired and ConsensusEmitted are diagnostics flags.
	CollaborationFired bool
	ConsensusEmitted   bool

	// SummaryRefreshed reports whether this turn updated the summary.
	SummaryRefreshed bool
}

// NewState builds a fresh per-invocation state from the prior transcript.
func NewState(roster []persona.Persona, transcript []Message, policy InstructorPolicy) *State {
	st := &State{
		Personas:   append([]persona.Persona(nil), roster...),
		Messages:   append([]Message(nil), transcript...),
		TurnCounts: make(map[string]int),
		Consensus:  make(map[string][]string),
		Policy:     policy.Normalized(),
	}
	return st
}

// Clone returns a deep copy of the state. Steps operate on clones only.
func (s *State) Clone() *State {
	c := *s
	c.Personas = append([]persona.Persona(nil), s.Personas...)
	c.Engaged = append([]persona.Persona(nil), s.Engaged...)
	c.Messages = append([]Message(nil), s.Messages...)
	c.RecentSpeakers = append([]string(nil), s.RecentSpeakers...)
	c.RoutingNotes = append([]string(nil), s.RoutingNotes...)

	c.TurnCounts = make(map[string]int, len(s.TurnCounts))
	for k, v := range s.TurnCounts {
		c.TurnCounts[k] = v
	}
	c.Consensus = make(map[string][]string, len(s.Consensus))
	for k, v := range s.Consensus {
		c.Consensus[k] = append([]string(nil), v...)
	}
	if s.Classification != nil {
		cls := *s.Classification
		cls.TargetPersonas = append([]string(nil), s.Classification.TargetPersonas...)
		c.Classification = &cls
	}
	return &c
}

// LatestMessage returns the newest transcript entry, if any.
func (s *State) LatestMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LatestStudentMessage returns the newest entry only when it was authored
// by the student.
func (s *State) LatestStudentMessage() (Message, bool) {
	msg, ok := s.LatestMessage()
	if !ok || msg.Sender != SenderStudent {
		return Message{}, false
	}
	return msg, true
}

// trailingPersonaMessages returns up to n persona messages from the end of
// the transcript, in transcript order.
func (s *State) trailingPersonaMessages(n int) []Message {
	var out []Message
	for i := len(s.Messages) - 1; i >= 0 && len(out) < n; i-- {
		switch s.Messages[i].Sender {
		case SenderPersona:
			out = append(out, s.Messages[i])
		case SenderSystem:
			// consensus summaries sit between replies and the formatter
			continue
		default:
			return reverseMessages(out)
		}
	}
	return reverseMessages(out)
}

func reverseMessages(msgs []Message) []Message {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}

// pushRecentSpeaker appends a name to the recency window, dropping the
// oldest entry past the cap.
func (s *State) pushRecentSpeaker(name string) {
	s.RecentSpeakers = append(s.RecentSpeakers, name)
	if len(s.RecentSpeakers) > recencyWindowCap {
		s.RecentSpeakers = s.RecentSpeakers[len(s.RecentSpeakers)-recencyWindowCap:]
	}
}

// discussionRoundCount counts transcript messages flagged as part of a
// discussion round for the given goal.
func (s *State) discussionRoundCount(goal string) int {
	count := 0
	for _, m := range s.Messages {
		if m.IsDiscussionRound() && m.CollaborationGoal() == goal {
			count++
		}
	}
	return count
}

// note records a routing/diagnostic decision.
func (s *State) note(text string) {
	s.RoutingNotes = append(s.RoutingNotes, text)
}
