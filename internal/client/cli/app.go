package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/budgetbook/internal/events"
	"github.com/dmitrijs2005/budgetbook/internal/logging"
	"github.com/dmitrijs2005/budgetbook/internal/models"
	"github.com/dmitrijs2005/budgetbook/internal/services"
)

// Connectivity of the shared store as last observed by the watcher.
type Connectivity string

const (
	ConnOnline   Connectivity = "online"
	ConnOffline  Connectivity = "offline"
	ConnDisabled Connectivity = "local"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Subscriber is satisfied by *events.Bus.
type Subscriber interface {
	Subscribe(fn events.Listener) (unsubscribe func())
}

type App struct {
	svc          *services.Services
	remote       Pinger
	bus          Subscriber
	logger       logging.Logger
	reader       *bufio.Reader
	out          io.Writer
	pingInterval time.Duration

	mu   sync.Mutex
	conn Connectivity
}

// NewApp wires the client. remote and bus may be nil: without a remote the
// client only offers guest mode.
func NewApp(svc *services.Services, remote Pinger, bus Subscriber, logger logging.Logger, in io.Reader, out io.Writer) *App {
	a := &App{
		svc:          svc,
		remote:       remote,
		bus:          bus,
		logger:       logging.Component(logger, "cli"),
		reader:       bufio.NewReader(in),
		out:          out,
		pingInterval: 30 * time.Second,
		conn:         ConnDisabled,
	}
	if remote != nil {
		a.conn = ConnOnline
	}
	return a
}

// Run blocks until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.bus != nil {
		unsubscribe := a.bus.Subscribe(func(e events.Event) {
			a.logger.Debug(ctx, "book changed", "scope", e.Scope.String())
		})
		defer unsubscribe()
	}
	if a.remote != nil {
		go a.StartOnlineStatusWatcher(ctx, a.pingInterval)
	}

	a.printf("budgetbook (type 'help' for commands)\n")
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) setConn(c Connectivity) {
	a.mu.Lock()
	changed := a.conn != c
	a.conn = c
	a.mu.Unlock()
	if changed {
		a.logger.Info(context.Background(), "shared store connectivity changed", "state", string(c))
	}
}

func (a *App) connectivity() Connectivity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn
}

// StartOnlineStatusWatcher pings the shared store every interval until ctx
// is done and records the outcome for the prompt.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.remote.PingContext(pctx)
			cancel()

			if err != nil {
				a.setConn(ConnOffline)
			} else {
				a.setConn(ConnOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) mode(ctx context.Context) models.Mode {
	m, err := a.svc.Identity.Mode(ctx)
	if err != nil {
		a.logger.Warn(ctx, "auth mode unreadable", "error", err)
		return models.ModeNone
	}
	return m
}

func (a *App) isLoggedIn() bool {
	return a.mode(context.Background()) != models.ModeNone
}

// userID is empty for guests and signed-out devices.
func (a *App) userID(ctx context.Context) string {
	uid, err := a.svc.Identity.CurrentUserID(ctx)
	if err != nil {
		return ""
	}
	return uid
}

// getStatus renders "(name book conn)" for the prompt.
func (a *App) getStatus() string {
	ctx := context.Background()
	if !a.isLoggedIn() {
		return fmt.Sprintf("(%s)", a.connectivity())
	}
	name, err := a.svc.Identity.DisplayName(ctx)
	if err != nil {
		name = "?"
	}
	book := "?"
	if b, err := a.svc.Books.ActiveBook(ctx, a.userID(ctx)); err == nil && b != nil {
		book = b.Name
	}
	return fmt.Sprintf("(%s @ %s %s)", name, book, a.connectivity())
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// report prints err for the user and returns it.
func (a *App) report(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	a.logger.Debug(ctx, "command failed", "error", err)
	a.printf("error: %s\n", describe(err))
	return err
}
