// Package metadata stores device-local key/value state: auth mode, session
// token, active budget book and per-user overrides.
package metadata

import "context"

// Well-known keys.
const (
	KeyAuthMode    = "auth_mode"
	KeyAccessToken = "access_token"
	KeyActiveBook  = "active_book"
)

// PersonalNameKey is the key of the personal book name override of a user.
func PersonalNameKey(userID string) string {
	return "personal_name:" + userID
}

// Repository is a string key/value store. Get reports ok=false for a missing
// key rather than an error.
type Repository interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error
}
