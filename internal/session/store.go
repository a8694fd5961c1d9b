// Package session provides durable-ish storage for interview sessions.
// The dialogue engine itself is storage-free; the HTTP layer loads a
// session, runs a turn, and writes the result back here.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stakesim/stakesim/internal/dialogue"
	"github.com/stakesim/stakesim/internal/persona"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Session is the persisted record for one interview.
type Session struct {
	ID             string                    `json:"id"`
	Personas       []persona.Persona         `json:"personas"`
	Messages       []dialogue.Message        `json:"messages"`
	Policy         dialogue.InstructorPolicy `json:"policy"`
	TurnCounts     map[string]int            `json:"turnCounts"`
	RecentSpeakers []string                  `json:"recentSpeakers"`
	Consensus      map[string][]string       `json:"consensus"`
	Summary        string                    `json:"summary"`
	LastSpeaker    string                    `json:"lastSpeaker"`
	TurnCount      int                       `json:"turnCount"`
	CreatedAt      time.Time                 `json:"createdAt"`
	UpdatedAt      time.Time                 `json:"updatedAt"`
}

// NewSession creates an empty session for a roster.
func NewSession(roster []persona.Persona, policy dialogue.InstructorPolicy) *Session {
	now := time.Now()
	return &Session{
		ID:         uuid.NewString(),
		Personas:   append([]persona.Persona(nil), roster...),
		Policy:     policy.Normalized(),
		TurnCounts: make(map[string]int),
		Consensus:  make(map[string][]string),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Store is the session persistence interface.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, s *Session) error
	List(ctx context.Context) ([]*Session, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore is a mutex-guarded in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Get returns a copy of the session so callers cannot alias stored state.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(sess), nil
}

// Put stores a copy of the session, refreshing UpdatedAt.
func (s *MemoryStore) Put(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := copySession(sess)
	c.UpdatedAt = time.Now()
	s.sessions[sess.ID] = c
	return nil
}

// List returns all sessions sorted by last update, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, copySession(sess))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func copySession(sess *Session) *Session {
	c := *sess
	c.Personas = append([]persona.Persona(nil), sess.Personas...)
	c.Messages = append([]dialogue.Message(nil), sess.Messages...)
	c.RecentSpeakers = append([]string(nil), sess.RecentSpeakers...)
	c.TurnCounts = make(map[string]int, len(sess.TurnCounts))
	for k, v := range sess.TurnCounts {
		c.TurnCounts[k] = v
	}
	c.Consensus = make(map[string][]string, len(sess.Consensus))
	for k, v := range sess.Consensus {
		c.Consensus[k] = append([]string(nil), v...)
	}
	return &c
}

var _ Store = (*MemoryStore)(nil)
