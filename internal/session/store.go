package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"snapbooth/pkg/types"
)

// maxTokenAttempts bounds token generation retries. A uuid collision is
// negligible but the generator contract does not promise impossibility.
const maxTokenAttempts = 5

// Store owns the canonical session records. It is a dumb, race-free
// single-owner map: lookups return copies, partial updates merge fields, and
// state-machine rules live in the Orchestrator, not here.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*types.Session
	now      func() time.Time
}

// Fields is a partial update applied by Update. Nil fields are left as-is.
type Fields struct {
	Status    *types.Status
	ImagePath *string
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*types.Session),
		now:      time.Now,
	}
}

// Create allocates a session with a fresh unguessable token in the waiting
// state. Collisions are rejected and retried; ErrTokenExhausted is returned
// only if generation never yields an unused token.
func (s *Store) Create() (types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token := uuid.New().String()
		if _, exists := s.sessions[token]; exists {
			continue
		}

		session := &types.Session{
			Token:     token,
			Status:    types.StatusWaiting,
			CreatedAt: s.now(),
		}
		s.sessions[token] = session
		return *session, nil
	}

	return types.Session{}, ErrTokenExhausted
}

// Get returns a copy of the session. Absence is not an error at this layer.
// Callers never receive a reference into the map, so a copy held across an
// async boundary cannot observe or cause later mutation.
func (s *Store) Get(token string) (types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[token]
	if !exists {
		return types.Session{}, false
	}
	return *session, true
}

// Update merges the supplied fields into the existing record atomically.
// Returns the updated copy, or false if the token is unknown.
func (s *Store) Update(token string, fields Fields) (types.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[token]
	if !exists {
		return types.Session{}, false
	}

	if fields.Status != nil {
		session.Status = *fields.Status
	}
	if fields.ImagePath != nil {
		session.ImagePath = *fields.ImagePath
	}
	return *session, true
}

// SetImage associates an image with the session and moves it to image_ready.
// Both fields change together or neither does.
func (s *Store) SetImage(token, imagePath string) (types.Session, bool) {
	status := types.StatusImageReady
	return s.Update(token, Fields{Status: &status, ImagePath: &imagePath})
}

// Delete removes a session record. Idempotent.
func (s *Store) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions older than maxAge and returns copies of the removed
// records so callers can release associated resources. Sessions accumulate
// forever when the sweeper is disabled, matching the original behavior.
func (s *Store) Sweep(maxAge time.Duration) []types.Session {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []types.Session
	for token, session := range s.sessions {
		if session.CreatedAt.Before(cutoff) {
			removed = append(removed, *session)
			delete(s.sessions, token)
		}
	}
	return removed
}
