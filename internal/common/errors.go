// Package common defines sentinel errors and constants shared by the
// budgetbook services, repositories and the terminal client. Callers should
// match these values with errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrSchemaMismatch is returned by the parties repository when the remote
	// schema predates the is_personal column.
	ErrSchemaMismatch = errors.New("remote schema mismatch")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrNoSession      = errors.New("no session")

	// Party and budget book policy errors.
	ErrAlreadyMember        = errors.New("already a member of this party")
	ErrCapacityExceeded     = errors.New("budget book limit reached")
	ErrCategoryLimit        = errors.New("category limit reached")
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrRemoteTimeout marks a listing call that ran out of its time budget.
	ErrRemoteTimeout = errors.New("remote call timed out")

	// ErrRemoteUnavailable is returned when no shared store is configured.
	ErrRemoteUnavailable = errors.New("remote store not configured")

	// Validation errors.
	ErrInvalidInput = errors.New("invalid input")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
