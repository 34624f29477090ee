// Package guest keeps the ledger of a device used without an account. Guest
// data has a single implicit personal scope and never leaves the device.
package guest

import (
	"context"

	"github.com/dmitrijs2005/budgetbook/internal/models"
)

type CategoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
	Insert(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
	CountByType(ctx context.Context, t models.EntryType) (int, error)
}

type TransactionRepository interface {
	// List returns transactions whose date starts with prefix ("" for all),
	// newest first.
	List(ctx context.Context, prefix string) ([]models.Transaction, error)
	Insert(ctx context.Context, t *models.Transaction) error
	Update(ctx context.Context, t *models.Transaction) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}
