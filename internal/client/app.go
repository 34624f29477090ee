// Package client initializes and runs the budgetbook terminal client. It
// opens the device store and, when configured, the shared store, wires the
// services and hands control to the REPL.
package client

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/budgetbook/internal/client/cli"
	"github.com/dmitrijs2005/budgetbook/internal/config"
	"github.com/dmitrijs2005/budgetbook/internal/device"
	"github.com/dmitrijs2005/budgetbook/internal/events"
	"github.com/dmitrijs2005/budgetbook/internal/logging"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/repomanager"
	"github.com/dmitrijs2005/budgetbook/internal/services"
)

// openRemote is a seam for tests.
var openRemote = repomanager.Open

type App struct {
	config   *config.Config
	logger   logging.Logger
	localDB  *sql.DB
	remoteDB *sql.DB
	cli      *cli.App
}

// NewApp opens the stores and wires the client. An unreachable shared store
// is logged and leaves the client in local-only mode.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out io.Writer) (*App, error) {
	logger := logging.New(c.LogFormat, c.LogLevel, os.Stderr)

	localDB, repos, err := device.InitDatabase(ctx, c.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("device db init error: %w", err)
	}

	var remoteDB *sql.DB
	var rm repomanager.RepositoryManager
	if c.RemoteDSN != "" {
		remoteDB, err = openRemote(ctx, c.RemoteDSN)
		if err != nil {
			logger.Error(ctx, "shared store unavailable, running local only", "error", err)
			remoteDB = nil
		} else {
			rm = repomanager.NewPostgresRepositoryManager()
		}
	}

	bus := events.NewBus(logger)
	svc := services.New(c, services.Deps{
		RemoteDB: remoteDB,
		Repos:    rm,
		Device:   repos,
		Events:   bus,
		Logger:   logger,
	})

	// A nil *sql.DB must not become a non-nil Pinger.
	var pinger cli.Pinger
	if remoteDB != nil {
		pinger = remoteDB
	}

	return &App{
		config:   c,
		logger:   logger,
		localDB:  localDB,
		remoteDB: remoteDB,
		cli:      cli.NewApp(svc, pinger, bus, logger, in, out),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until the REPL ends, then closes both stores.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.Close()

	app.logger.Info(ctx, "starting budgetbook", "local_db", app.config.LocalDBPath, "shared_store", app.remoteDB != nil)
	app.initSignalHandler(cancelFunc)
	app.cli.Run(ctx)
}

func (app *App) Close() {
	if app.remoteDB != nil {
		if err := app.remoteDB.Close(); err != nil {
			app.logger.Warn(context.Background(), "close shared store", "error", err)
		}
	}
	if err := app.localDB.Close(); err != nil {
		app.logger.Warn(context.Background(), "close device store", "error", err)
	}
}
