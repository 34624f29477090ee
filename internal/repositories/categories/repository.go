// Package categories persists scoped categories in the shared store.
package categories

import (
	"context"

	"github.com/dmitrijs2005/budgetbook/internal/models"
)

// Repository methods taking (userID, scope) only see rows of that scope:
// the caller's party-less rows for Personal, every row of the party otherwise.
type Repository interface {
	List(ctx context.Context, userID string, scope models.Scope) ([]models.Category, error)
	Insert(ctx context.Context, c *models.Category) error
	// Update renames or retypes c within scope; common.ErrorNotFound when
	// no row of the scope has that id.
	Update(ctx context.Context, userID string, scope models.Scope, c *models.Category) error
	Delete(ctx context.Context, userID string, scope models.Scope, id string) error
	CountByType(ctx context.Context, userID string, scope models.Scope, t models.EntryType) (int, error)
	// DeletePersonal removes every party-less row of userID.
	DeletePersonal(ctx context.Context, userID string) (int64, error)
	// DeleteByParty removes every row of partyID.
	DeleteByParty(ctx context.Context, partyID string) (int64, error)
	// ReparentPersonal moves every party-less row of userID into partyID.
	ReparentPersonal(ctx context.Context, userID, partyID string) (int64, error)
}
