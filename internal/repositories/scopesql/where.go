// Package scopesql renders the row filter of a budget book scope for the
// Postgres repositories.
package scopesql

import (
	"fmt"

	"github.com/dmitrijs2005/budgetbook/internal/models"
)

// Where returns the predicate selecting the rows of scope for userID, with
// placeholders numbered from pos. Personal rows are the caller's rows without
// a party; party rows are every row of that party, whoever wrote them.
func Where(userID string, scope models.Scope, pos int) (string, []any) {
	if id, ok := scope.PartyID(); ok {
		return fmt.Sprintf("party_id = $%d", pos), []any{id}
	}
	return fmt.Sprintf("user_id = $%d AND party_id IS NULL", pos), []any{userID}
}
