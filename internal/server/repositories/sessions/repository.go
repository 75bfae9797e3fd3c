// Package sessions declares and implements persistent storage for browser
// sessions.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/google/uuid"
)

// Repository stores sessions keyed by their id.
type Repository interface {
	// Save inserts the session or overwrites the stored copy with the same id.
	Save(ctx context.Context, s *models.Session) error

	// Find returns the session with the given id, or common.ErrorNotFound.
	Find(ctx context.Context, id uuid.UUID) (*models.Session, error)

	// Delete removes a session. Deleting a missing id is not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteByUser removes every session bound to userID and returns how many
	// rows went away.
	DeleteByUser(ctx context.Context, userID int64) (int64, error)

	// DeleteExpired removes sessions whose expiry is before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
