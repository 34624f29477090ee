package models

import "time"

// Role is a member's role within a shared party.
type Role string

const (
	RoleHost   Role = "host"
	RoleMember Role = "member"
)

// Party backs every non-implicit budget book. InviteCode is nil for explicit
// personal parties. IsPersonal is false for legacy rows that predate the flag.
type Party struct {
	ID         string
	Name       string
	InviteCode *string
	CreatedBy  string
	IsPersonal bool
	CreatedAt  time.Time
}

type PartyMember struct {
	PartyID     string
	UserID      string
	Role        Role
	DisplayName string
	JoinedAt    time.Time
}

// BookKind tells personal books from shared ones.
type BookKind string

const (
	BookPersonal BookKind = "personal"
	BookShared   BookKind = "shared"
)

// BudgetBook is a named scope as presented to the user.
type BudgetBook struct {
	ID         Scope
	Name       string
	Kind       BookKind
	IsPersonal bool
	// IsImplicit marks the personal book that has no backing row.
	IsImplicit bool
	Role       Role
	InviteCode string
	Members    []PartyMember
	CreatedBy  string
	CreatedAt  time.Time
}
