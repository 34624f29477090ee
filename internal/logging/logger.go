// Package logging defines the structured-logging interface used by the
// budgetbook services and its slog-backed implementation.
package logging

import "context"

// Logger is a context-aware, structured logger. Variadic args are key-value
// pairs:
//
//	log.Info(ctx, "party created", "party_id", id, "personal", isPersonal)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}

// Component returns a child logger tagged with the component name.
func Component(l Logger, name string) Logger {
	return l.With("component", name)
}
