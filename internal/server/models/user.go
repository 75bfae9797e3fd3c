package models

import (
	"strings"
	"time"
)

// User is a registered account. PasswordHash is never the plaintext.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail trims and lower-cases an address. Emails are stored and
// looked up in this form, so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
