package models

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/budgetbook/internal/common"
)

// Mode is the device-level authentication mode.
type Mode string

const (
	ModeNone          Mode = ""
	ModeGuest         Mode = "guest"
	ModeAuthenticated Mode = "authenticated"
)

// Session is the verified identity behind a stored access token.
type Session struct {
	UserID    string
	Email     string
	Metadata  map[string]any
	ExpiresAt time.Time
}

// Profile is the public part of a user account as stored remotely.
type Profile struct {
	UserID   string
	Email    string
	Metadata map[string]any
}

// DisplayName picks nickname, name, full_name, then email, then a fixed
// fallback.
func (p Profile) DisplayName() string {
	return displayName(p.Metadata, p.Email)
}

// Profile converts the session into the profile shape.
func (s Session) Profile() Profile {
	return Profile{UserID: s.UserID, Email: s.Email, Metadata: s.Metadata}
}

func displayName(meta map[string]any, email string) string {
	for _, key := range []string{"nickname", "name", "full_name"} {
		if v, ok := meta[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if email != "" {
		return email
	}
	return common.FallbackDisplayName
}
