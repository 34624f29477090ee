package common

import "time"

const (
	// MaxBudgetBooks caps implicit personal + party-backed books per user.
	MaxBudgetBooks = 4

	// MaxCategoriesPerType caps categories of one type within a scope.
	MaxCategoriesPerType = 20

	// InviteCodeLength is the length of a shared party invite code.
	InviteCodeLength = 8

	// DefaultListTimeout bounds listing calls against the remote store.
	DefaultListTimeout = 8 * time.Second

	// DefaultPersonalBookName is shown when the user has no local override.
	DefaultPersonalBookName = "개인 가계부"

	// FallbackDisplayName is used when a profile carries no usable name.
	FallbackDisplayName = "사용자"

	// GuestDisplayName is shown for guest-mode sessions.
	GuestDisplayName = "게스트"
)
