package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/stakesim/stakesim/internal/coverage"
	"github.com/stakesim/stakesim/internal/dialogue"
	"github.com/stakesim/stakesim/internal/persona"
	"github.com/stakesim/stakesim/internal/session"
)

// ChatRequest is the request body for POST /api/v1/chat. When SessionID is
// empty a new session is created from Personas and Policy.
type ChatRequest struct {
	SessionID string                     `json:"sessionId,omitempty"`
	Message   string                     `json:"message"`
	Personas  []persona.Persona          `json:"personas,omitempty"`
	Policy    *dialogue.InstructorPolicy `json:"policy,omitempty"`
}

// handleChat runs one dialogue turn against the session transcript and
// persists the outcome.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()

	var sess *session.Session
	switch {
	case req.SessionID != "":
		var err error
		sess, err = s.sessions.Get(ctx, req.SessionID)
		if errors.Is(err, session.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to load session")
		}
	case len(req.Personas) > 0:
		policy := dialogue.InstructorPolicy{}
		if req.Policy != nil {
			policy = *req.Policy
		}
		sess = session.NewSession(req.Personas, policy)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "sessionId or personas is required")
	}

	turnReq := dialogue.TurnRequest{
		SessionID:      sess.ID,
		Message:        req.Message,
		Personas:       sess.Personas,
		History:        sess.Messages,
		Policy:         &sess.Policy,
		TurnCounts:     sess.TurnCounts,
		RecentSpeakers: sess.RecentSpeakers,
		Summary:        sess.Summary,
		LastSpeaker:    sess.LastSpeaker,
		Consensus:      sess.Consensus,
		TurnCount:      sess.TurnCount,
	}

	resp, err := s.turns.ProcessTurn(ctx, turnReq)
	if err != nil {
		// caller-level fatal error: the envelope carries the apology
		s.logger.Warn("rejected turn request", zap.Error(err),
			zap.String("session_id", sess.ID))
		return c.JSON(http.StatusBadRequest, resp)
	}

	sess.Messages = resp.Messages
	sess.TurnCounts = resp.TurnCounts
	sess.RecentSpeakers = resp.Diagnostics.RecentSpeakers
	sess.Consensus = resp.Consensus
	sess.Summary = resp.Summary
	sess.LastSpeaker = resp.LastSpeaker
	sess.TurnCount++

	if err := s.sessions.Put(ctx, sess); err != nil {
		s.logger.Error("failed to persist session", zap.Error(err),
			zap.String("session_id", sess.ID))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to persist session")
	}

	return c.JSON(http.StatusOK, resp)
}

// GeneratePersonasRequest is the request body for POST /api/v1/personas/generate.
type GeneratePersonasRequest struct {
	Domain string `json:"domain"`
	Size   int    `json:"size"`
}

// GeneratePersonasResponse wraps the generated roster.
type GeneratePersonasResponse struct {
	Personas []persona.Persona `json:"personas"`
}

func (s *Server) handleGeneratePersonas(c echo.Context) error {
	if s.personas == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "persona generation is not configured")
	}

	var req GeneratePersonasRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Size <= 0 {
		req.Size = 4
	}

	roster, err := s.personas.Generate(c.Request().Context(), req.Domain, req.Size)
	if err != nil {
		s.logger.Error("persona generation failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "persona generation failed")
	}
	return c.JSON(http.StatusOK, GeneratePersonasResponse{Personas: roster})
}

// SessionSummary is one row of GET /api/v1/sessions.
type SessionSummary struct {
	ID        string `json:"id"`
	Personas  int    `json:"personas"`
	Messages  int    `json:"messages"`
	TurnCount int    `json:"turnCount"`
	UpdatedAt string `json:"updatedAt"`
}

func (s *Server) handleListSessions(c echo.Context) error {
	sessions, err := s.sessions.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list sessions")
	}

	out := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, SessionSummary{
			ID:        sess.ID,
			Personas:  len(sess.Personas),
			Messages:  len(sess.Messages),
			TurnCount: sess.TurnCount,
			UpdatedAt: sess.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetSession(c echo.Context) error {
	sess, err := s.sessions.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load session")
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	err := s.sessions.Delete(c.Request().Context(), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete session")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleCoverage(c echo.Context) error {
	sess, err := s.sessions.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load session")
	}
	return c.JSON(http.StatusOK, coverage.Score(sess.Messages, sess.Personas))
}
