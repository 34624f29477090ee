// Package services is the budget book core: identity resolution, the book
// registry, the party lifecycle, scoped ledger access and the composite
// flows the terminal client drives.
//
// Remote calls go through a repomanager.RepositoryManager bound to the shared
// Postgres store; device state and guest data go through the SQLite
// repositories of package device. Listing paths run under Config.ListTimeout
// and degrade to partial or empty results; writes surface their errors.
package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/config"
	"github.com/dmitrijs2005/budgetbook/internal/device"
	"github.com/dmitrijs2005/budgetbook/internal/events"
	"github.com/dmitrijs2005/budgetbook/internal/logging"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/repomanager"
)

// Deps are the collaborators shared by every service. RemoteDB may be nil
// when no shared store is configured; only guest mode works then.
type Deps struct {
	RemoteDB *sql.DB
	Repos    repomanager.RepositoryManager
	Device   *device.Repositories
	Events   events.Emitter
	Logger   logging.Logger
}

// Services bundles the wired services.
type Services struct {
	Identity     *IdentityService
	Books        *BookService
	Parties      *PartyService
	Categories   *CategoryService
	Transactions *TransactionService
	Flows        *FlowService
}

// New wires every service from cfg and d.
func New(cfg *config.Config, d Deps) *Services {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Events == nil {
		d.Events = noopEmitter{}
	}
	timeout := cfg.ListTimeout
	if timeout <= 0 {
		timeout = common.DefaultListTimeout
	}
	r := remote{db: d.RemoteDB, repos: d.Repos}

	identity := NewIdentityService(d.Device.Metadata, []byte(cfg.JWTSecret), d.Logger)
	books := NewBookService(r, d.Device.Metadata, identity, d.Events, d.Logger, timeout)
	parties := NewPartyService(r, identity, books, d.Events, d.Logger)
	categories := NewCategoryService(r, d.Device.GuestCategories, identity, books, d.Logger, timeout)
	transactions := NewTransactionService(r, d.Device.GuestTransactions, identity, books, d.Logger, timeout)
	flows := NewFlowService(r, identity, books, parties, categories, transactions, d.Logger)

	return &Services{
		Identity:     identity,
		Books:        books,
		Parties:      parties,
		Categories:   categories,
		Transactions: transactions,
		Flows:        flows,
	}
}

// remote is the shared store: a connection plus the repository factory.
type remote struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func (r remote) check() error {
	if r.db == nil || r.repos == nil {
		return common.ErrRemoteUnavailable
	}
	return nil
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, events.Event) {}

// withListTimeout bounds a listing call.
func withListTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

// logDegraded records a listing failure that is not returned to the caller.
func logDegraded(ctx context.Context, logger logging.Logger, what string, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn(ctx, "listing degraded", "what", what, "error", common.ErrRemoteTimeout)
		return
	}
	logger.Error(ctx, "listing degraded", "what", what, "error", err)
}
