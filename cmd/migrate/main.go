// Command migrate applies the shared store schema.
package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/budgetbook/internal/config"
	"github.com/dmitrijs2005/budgetbook/internal/logging"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/repomanager"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.New(cfg.LogFormat, cfg.LogLevel, os.Stderr)

	if cfg.RemoteDSN == "" {
		logger.Error(ctx, "no shared store configured, set -d or BUDGETBOOK_REMOTE_DSN")
		os.Exit(1)
	}

	db, err := repomanager.Open(ctx, cfg.RemoteDSN)
	if err != nil {
		logger.Error(ctx, "connect", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := repomanager.NewPostgresRepositoryManager().RunMigrations(ctx, db); err != nil {
		logger.Error(ctx, "migrate", "error", err)
		db.Close()
		os.Exit(1)
	}
	logger.Info(ctx, "shared store schema is up to date")
}
