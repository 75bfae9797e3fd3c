// Package common defines shared constants, sentinel errors and small helpers
// used across the account server and console. Callers should use errors.Is to
// match the error values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("email already registered")

	// Service-level errors.
	ErrNotAuthenticated        = errors.New("not authenticated")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrCurrentPasswordMismatch = errors.New("current password is wrong")

	// Session token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
