// Package parties persists the rows backing party budget books.
package parties

import (
	"context"

	"github.com/dmitrijs2005/budgetbook/internal/models"
)

// Membership is a party seen through one of its members.
type Membership struct {
	Party models.Party
	Role  models.Role
}

// Reads on a store without the is_personal column treat a party without
// members as the personal party of its creator.
type Repository interface {
	// Create inserts p and fills CreatedAt. It returns common.ErrSchemaMismatch
	// when the store has no is_personal column.
	Create(ctx context.Context, p *models.Party) error
	// CreateLegacy inserts p without the is_personal column.
	CreateLegacy(ctx context.Context, p *models.Party) error
	GetByID(ctx context.Context, id string) (*models.Party, error)
	// GetByInviteCode matches an already normalized code.
	GetByInviteCode(ctx context.Context, code string) (*models.Party, error)
	// ListPersonal returns explicit personal parties created by userID.
	ListPersonal(ctx context.Context, userID string) ([]models.Party, error)
	// ListByMember returns parties userID has a membership row in.
	ListByMember(ctx context.Context, userID string) ([]Membership, error)
	// CountBooks counts explicit personal parties and memberships of userID.
	CountBooks(ctx context.Context, userID string) (int, error)
	UpdateName(ctx context.Context, id, name string) (*models.Party, error)
	// Delete removes the party; memberships go with it. Deleting a missing
	// party is not an error.
	Delete(ctx context.Context, id string) error
}
