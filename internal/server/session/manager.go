package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/sessions"
)

// Manager persists sessions and converts them to and from signed cookie
// tokens. Expiry slides forward by ttl on every Save.
type Manager struct {
	repo   sessions.Repository
	secret []byte
	ttl    time.Duration
	logger logging.Logger
	now    func() time.Time
}

// NewManager builds a Manager over repo, signing tokens with secret.
func NewManager(repo sessions.Repository, secret []byte, ttl time.Duration, logger logging.Logger) *Manager {
	return &Manager{repo: repo, secret: secret, ttl: ttl, logger: logger, now: time.Now}
}

// Load resolves a cookie token. Missing, forged, expired or unknown tokens
// yield a fresh session; only storage failures are returned as errors.
func (m *Manager) Load(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return New(), nil
	}

	id, err := auth.GetSessionIDFromToken(token, m.secret)
	if err != nil {
		m.logger.Debug(ctx, "session token rejected", "error", err)
		return New(), nil
	}

	stored, err := m.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return New(), nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if !stored.ExpiresAt.After(m.now()) {
		return New(), nil
	}

	return fromModel(stored), nil
}

// Save stores s, removes rows for ids it discarded, and returns the token to
// put in the cookie.
func (m *Manager) Save(ctx context.Context, s *Session) (string, error) {
	for _, old := range s.discarded {
		if err := m.repo.Delete(ctx, old); err != nil {
			return "", fmt.Errorf("drop old session: %w", err)
		}
	}
	s.discarded = nil

	s.expiresAt = m.now().Add(m.ttl)
	if err := m.repo.Save(ctx, s.toModel()); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	token, err := auth.GenerateSessionToken(s.id, m.secret, s.expiresAt)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Destroy deletes every stored row belonging to s, current id included.
func (m *Manager) Destroy(ctx context.Context, s *Session) error {
	ids := append(s.discarded, s.id)
	for _, id := range ids {
		if err := m.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("destroy session: %w", err)
		}
	}
	s.discarded = nil
	return nil
}

// TTL is the lifetime given to a session on each Save.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Cleanup removes expired rows and returns how many were deleted.
func (m *Manager) Cleanup(ctx context.Context) (int64, error) {
	n, err := m.repo.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	return n, nil
}
