// Package server wires the account application: it opens the database, runs
// migrations, builds repositories, the hasher, the session manager and the
// flow controller, and runs the HTTP server plus the expired-session janitor
// until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/httpserver"
	"github.com/dmitrijs2005/accounts/internal/server/metrics"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/accounts/internal/server/services"
	"github.com/dmitrijs2005/accounts/internal/server/session"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	metrics  *metrics.Metrics
	sessions *session.Manager
	accounts *services.AccountService
}

// seams for tests
var (
	sqlOpen       = sql.Open
	newRepoManager = repomanager.NewPostgresRepositoryManager
)

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sqlOpen("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	m := metrics.New()
	sm := session.NewManager(rm.Sessions(db), []byte(c.SecretKey), c.SessionTTL, logger.With("module", "sessions"))
	as := services.NewAccountService(db, rm, auth.NewArgon2idHasher(), logger.With("module", "accounts"), m)

	return &App{config: c, logger: logger, db: db, metrics: m, sessions: sm, accounts: as}, nil
}

// Accounts exposes the flow controller for in-process clients.
func (app *App) Accounts() *services.AccountService { return app.accounts }

// Close releases the database pool.
func (app *App) Close() error {
	return app.db.Close()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	opts := httpserver.Options{
		CookieName:   app.config.SessionCookieName,
		CookieSecure: app.config.SessionCookieSecure,
		Recorder:     app.metrics,
	}
	if app.config.MetricsEnabled {
		opts.Metrics = app.metrics.Handler()
	}

	s := httpserver.NewServer(app.config.EndpointAddrHTTP, app.logger, app.accounts, app.sessions, opts)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until SIGINT/SIGTERM/SIGQUIT or until ctx is cancelled, then
// closes the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		runJanitor(ctx, app.sessions, app.config.SessionCleanupInterval, app.logger)
	}()

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}

type sessionCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// runJanitor purges expired sessions every interval until ctx is done.
func runJanitor(ctx context.Context, c sessionCleaner, interval time.Duration, logger logging.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Cleanup(ctx)
			if err != nil {
				logger.Warn(ctx, "session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}
