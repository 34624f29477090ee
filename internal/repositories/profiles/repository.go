// Package profiles reads and writes the public profile of each account,
// the source of member display names.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/budgetbook/internal/models"
)

type Repository interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	// Upsert writes p, replacing email and metadata of an existing row.
	Upsert(ctx context.Context, p *models.Profile) error
}
