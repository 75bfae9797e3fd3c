// Package session binds browser sessions to user ids. A Session is a plain
// value handed to every flow-controller operation; Manager loads and stores it.
package session

import (
	"time"

	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/google/uuid"
)

// Session is per-client state: at most one user id plus pending flashes.
// It is not safe for concurrent use; each request owns its copy.
type Session struct {
	id        uuid.UUID
	userID    *int64
	flashes   []models.Flash
	expiresAt time.Time

	// ids dropped by Clear that still have stored rows
	discarded []uuid.UUID
}

// New returns an empty, unbound session with a fresh id.
func New() *Session {
	return &Session{id: uuid.New()}
}

func fromModel(m *models.Session) *Session {
	s := &Session{id: m.ID, expiresAt: m.ExpiresAt}
	if m.UserID != nil {
		id := *m.UserID
		s.userID = &id
	}
	s.flashes = append(s.flashes, m.Flashes...)
	return s
}

func (s *Session) toModel() *models.Session {
	m := &models.Session{ID: s.id, ExpiresAt: s.expiresAt, Flashes: append([]models.Flash{}, s.flashes...)}
	if s.userID != nil {
		id := *s.userID
		m.UserID = &id
	}
	return m
}

// ID is the current session id.
func (s *Session) ID() uuid.UUID { return s.id }

// SetUser binds the session to userID, replacing any previous binding.
func (s *Session) SetUser(userID int64) {
	s.userID = &userID
}

// User returns the bound user id. The id may refer to a deleted user; callers
// resolve it against the store.
func (s *Session) User() (int64, bool) {
	if s.userID == nil {
		return 0, false
	}
	return *s.userID, true
}

// Clear resets everything: binding, flashes and id. The old id is remembered
// so Manager.Save can delete its row.
func (s *Session) Clear() {
	s.discarded = append(s.discarded, s.id)
	s.id = uuid.New()
	s.userID = nil
	s.flashes = nil
}

// AddFlash queues a message for the next rendered page.
func (s *Session) AddFlash(kind, message string) {
	s.flashes = append(s.flashes, models.Flash{Kind: kind, Message: message})
}

// PopFlashes returns the queued messages and empties the queue.
func (s *Session) PopFlashes() []models.Flash {
	f := s.flashes
	s.flashes = nil
	return f
}

// Flashes returns the queued messages without consuming them.
func (s *Session) Flashes() []models.Flash {
	return append([]models.Flash{}, s.flashes...)
}
