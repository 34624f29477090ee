package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/budgetbook/internal/dbx"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/categories"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/members"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/parties"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/profiles"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/transactions"
)

// RepositoryManager vends remote repositories bound to a connection or a
// transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Parties(db dbx.DBTX) parties.Repository
	Members(db dbx.DBTX) members.Repository
	Categories(db dbx.DBTX) categories.Repository
	Transactions(db dbx.DBTX) transactions.Repository
	Profiles(db dbx.DBTX) profiles.Repository
}
