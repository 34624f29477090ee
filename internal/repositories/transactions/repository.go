// Package transactions persists scoped ledger transactions in the shared
// store.
package transactions

import (
	"context"

	"github.com/dmitrijs2005/budgetbook/internal/models"
)

// Repository follows the same scope rule as the categories repository.
type Repository interface {
	// List returns rows of scope whose date starts with prefix ("" for all,
	// "2025-03" for a month), newest first.
	List(ctx context.Context, userID string, scope models.Scope, prefix string) ([]models.Transaction, error)
	Insert(ctx context.Context, t *models.Transaction) error
	Update(ctx context.Context, userID string, scope models.Scope, t *models.Transaction) error
	Delete(ctx context.Context, userID string, scope models.Scope, id string) error
	DeletePersonal(ctx context.Context, userID string) (int64, error)
	DeleteByParty(ctx context.Context, partyID string) (int64, error)
	ReparentPersonal(ctx context.Context, userID, partyID string) (int64, error)
}
