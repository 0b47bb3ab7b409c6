// Package repomanager opens the account store selected by the DSN and
// prepares it for use: it waits for the database to come up and applies
// migrations (Postgres) or indexes (Mongo).
package repomanager

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/sethvargo/go-retry"
)

// Backends selectable through the DSN scheme.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Manager owns the connection behind an accounts.Repository.
type Manager struct {
	backend  string
	accounts accounts.Repository
	ping     func(ctx context.Context) error
	close    func(ctx context.Context) error
}

func (m *Manager) Backend() string { return m.backend }

func (m *Manager) Accounts() accounts.Repository { return m.accounts }

// Ping checks the underlying connection.
func (m *Manager) Ping(ctx context.Context) error {
	if m.ping == nil {
		return nil
	}
	return m.ping(ctx)
}

// Close releases the connection.
func (m *Manager) Close(ctx context.Context) error {
	if m.close == nil {
		return nil
	}
	return m.close(ctx)
}

// Open picks the backend from the DSN scheme:
//
//	memory://                    in-process map
//	postgres://, postgresql://   Postgres via pgx, goose migrations applied
//	mongodb://, mongodb+srv://   MongoDB, unique email index ensured
func Open(ctx context.Context, dsn string, logger logging.Logger) (*Manager, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	logger = logger.With("module", "repomanager")

	switch u.Scheme {
	case "memory":
		logger.Info(ctx, "using in-memory account store")
		return &Manager{backend: BackendMemory, accounts: accounts.NewMemoryRepository()}, nil
	case "postgres", "postgresql":
		return openPostgres(ctx, dsn, logger)
	case "mongodb", "mongodb+srv":
		return openMongo(ctx, dsn, databaseName(u), logger)
	default:
		return nil, fmt.Errorf("unsupported dsn scheme %q", u.Scheme)
	}
}

// newBackoff is a seam for tests.
var newBackoff = func() retry.Backoff {
	return retry.WithMaxRetries(6, retry.WithCappedDuration(5*time.Second, retry.NewExponential(250*time.Millisecond)))
}

// waitFor calls ping until it succeeds or the backoff gives up.
func waitFor(ctx context.Context, logger logging.Logger, what string, ping func(ctx context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, newBackoff(), func(ctx context.Context) error {
		attempt++
		if err := ping(ctx); err != nil {
			logger.Warn(ctx, "database not ready", "backend", what, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}
