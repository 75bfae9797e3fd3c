package models

import (
	"time"

	"github.com/google/uuid"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Session is the stored form of a browser session. UserID is a non-owning
// reference; the user it points to may have been deleted since.
type Session struct {
	ID        uuid.UUID
	UserID    *int64
	Flashes   []Flash
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
