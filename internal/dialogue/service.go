package dialogue

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/stakesim/stakesim/internal/persona"
)

// ErrInvalidRequest marks caller-level fatal errors: the request is
// missing fields the turn cannot run without.
var ErrInvalidRequest = errors.New("invalid turn request")

// TurnRequest is the inbound contract from the presentation layer.
type TurnRequest struct {
	SessionID string            `json:"sessionId,omitempty"`
	Message   string            `json:"message"`
	Personas  []persona.Persona `json:"personas"`
	History   []Message         `json:"history,omitempty"`
	Policy    *InstructorPolicy `json:"policy,omitempty"`

	// TurnCounts carries cumulative speaking counts from prior turns.
	TurnCounts map[string]int `json:"turnCounts,omitempty"`

	// RecentSpeakers carries the recency window from prior turns.
	RecentSpeakers []string `json:"recentSpeakers,omitempty"`

	// Summary carries the rolling memory summary from prior turns.
	Summary string `json:"summary,omitempty"`

	// LastSpeaker carries the prior turn's sole speaker, if any.
	LastSpeaker string `json:"lastSpeaker,omitempty"`

	// Consensus carries previously reached consensus statements.
	Consensus map[string][]string `json:"consensus,omitempty"`

	// TurnCount is the number of completed student turns so far.
	TurnCount int `json:"turnCount"`
}

// TurnDiagnostics is the metadata envelope's diagnostic block.
type TurnDiagnostics struct {
	RoutingNotes       []string `json:"routingNotes"`
	RecentSpeakers     []string `json:"recentSpeakers"`
	CollaborationFired bool     `json:"collaborationFired"`
	ConsensusEmitted   bool     `json:"consensusEmitted"`
	SummaryRefreshed   bool     `json:"summaryRefreshed"`
	Iterations         int      `json:"iterations"`
}

// TurnResponse is the outbound contract to the presentation layer.
type TurnResponse struct {
	Replies          []Reply             `json:"replies"`
	RosterSize       int                 `json:"rosterSize"`
	ReplyCount       int                 `json:"replyCount"`
	TranscriptLength int                 `json:"transcriptLength"`
	SessionID        string              `json:"sessionId,omitempty"`
	Classification   *Classification     `json:"classification,omitempty"`
	Confidences      []float64           `json:"confidences"`
	TurnCounts       map[string]int      `json:"turnCounts"`
	Consensus        map[string][]string `json:"consensus"`
	Policy           InstructorPolicy    `json:"policy"`
	Summary          string              `json:"summary,omitempty"`
	LastSpeaker      string              `json:"lastSpeaker,omitempty"`
	Messages         []Message           `json:"messages"`
	Diagnostics      TurnDiagnostics     `json:"diagnostics"`

	// Apology is set on caller-level fatal errors so the chat UI always
	// has something to render.
	Apology string `json:"apology,omitempty"`
}

// Service is the top-level turn API. It owns no storage: callers pass the
// prior transcript in and persist the returned one.
type Service struct {
	engine *Engine
	logger *zap.Logger
}

// NewService wraps an engine.
func NewService(engine *Engine, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{engine: engine, logger: logger}
}

// apologyText renders with the chat UI when a request cannot be served.
const apologyText = "I'm sorry, something went wrong handling that message. Please try asking again."

// ProcessTurn validates the request, runs the dialogue graph, and builds
// the reply envelope. No error below the request boundary escapes: engine
// failures degrade to an apology response.
func (s *Service) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResponse, error) {
	if req.Message == "" {
		return apologyResponse(req), fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	if len(req.Personas) == 0 {
		return apologyResponse(req), fmt.Errorf("%w: persona roster is required", ErrInvalidRequest)
	}

	policy := InstructorPolicy{}
	if req.Policy != nil {
		policy = *req.Policy
	}

	st := NewState(req.Personas, req.History, policy)
	st.LastSpeaker = req.LastSpeaker
	st.Summary = req.Summary
	st.TurnCount = req.TurnCount + 1
	st.RecentSpeakers = append([]string(nil), req.RecentSpeakers...)
	for k, v := range req.TurnCounts {
		st.TurnCounts[k] = v
	}
	for k, v := range req.Consensus {
		st.Consensus[k] = append([]string(nil), v...)
	}
	st.Messages = append(st.Messages, NewStudentMessage(req.Message))

	replies, final, err := s.engine.Run(ctx, st)
	if err != nil {
		// Interpreter-level errors are absorbed here; the caller sees a
		// renderable apology, never a raw failure.
		s.logger.Error("turn execution failed", zap.Error(err),
			zap.String("session_id", req.SessionID))
		return apologyResponse(req), nil
	}

	confidences := make([]float64, len(replies))
	for i, r := range replies {
		confidences[i] = r.Confidence
	}

	return &TurnResponse{
		Replies:          replies,
		RosterSize:       len(final.Personas),
		ReplyCount:       len(replies),
		TranscriptLength: len(final.Messages),
		SessionID:        req.SessionID,
		Classification:   final.Classification,
		Confidences:      confidences,
		TurnCounts:       final.TurnCounts,
		Consensus:        final.Consensus,
		Policy:           final.Policy,
		Summary:          final.Summary,
		LastSpeaker:      final.LastSpeaker,
		Messages:         final.Messages,
		Diagnostics: TurnDiagnostics{
			RoutingNotes:       final.RoutingNotes,
			RecentSpeakers:     final.RecentSpeakers,
			CollaborationFired: final.CollaborationFired,
			ConsensusEmitted:   final.ConsensusEmitted,
			SummaryRefreshed:   final.SummaryRefreshed,
			Iterations:         final.Iterations,
		},
	}, nil
}

// apologyResponse builds the system-authored apology envelope for fatal
// request errors.
func apologyResponse(req TurnRequest) *TurnResponse {
	return &TurnResponse{
		Replies:    []Reply{},
		SessionID:  req.SessionID,
		RosterSize: len(req.Personas),
		Apology:    apologyText,
	}
}
