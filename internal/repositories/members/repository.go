// Package members persists party membership rows.
package members

import (
	"context"

	"github.com/dmitrijs2005/budgetbook/internal/models"
)

type Repository interface {
	// Add inserts m and fills JoinedAt. A second row for the same
	// (party, user) yields common.ErrAlreadyExists.
	Add(ctx context.Context, m *models.PartyMember) error
	Get(ctx context.Context, partyID, userID string) (*models.PartyMember, error)
	// ListByParty returns members ordered by join time.
	ListByParty(ctx context.Context, partyID string) ([]models.PartyMember, error)
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, partyID, userID string) (bool, error)
	UpdateRole(ctx context.Context, partyID, userID string, role models.Role) error
	UpdateDisplayName(ctx context.Context, partyID, userID, name string) error
	// UpdateDisplayNameForUser renames userID in every party and returns the
	// number of rows changed.
	UpdateDisplayNameForUser(ctx context.Context, userID, name string) (int64, error)
}
