// Package device opens the on-device SQLite store and vends its
// repositories: device metadata and the guest ledger.
package device

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/budgetbook/internal/migrations/local"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/guest"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/metadata"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

type Repositories struct {
	Metadata          metadata.Repository
	GuestCategories   guest.CategoryRepository
	GuestTransactions guest.TransactionRepository
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Metadata:          metadata.NewSQLiteRepository(db),
		GuestCategories:   guest.NewSQLiteCategoryRepository(db),
		GuestTransactions: guest.NewSQLiteTransactionRepository(db),
	}
}

// RunMigrations applies the embedded device schema. It is safe to call on an
// up-to-date database.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	p, err := goose.NewProvider(goose.DialectSQLite3, db, local.Migrations)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("failed to migrate device store: %w", err)
	}
	return nil
}

// InitDatabase opens (or creates) the store at path and migrates it. The
// pool is limited to one connection so ":memory:" stores are shared.
func InitDatabase(ctx context.Context, path string) (*sql.DB, *Repositories, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open device store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, NewRepositories(db), nil
}
