// Package server wires the account store, the auth services and the HTTP
// and gRPC boundaries together and runs them until shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

const closeTimeout = 5 * time.Second

type App struct {
	config     *config.Config
	logger     logging.Logger
	repos      *repomanager.Manager
	httpServer *httpapi.Server
	grpcServer *gs.GRPCServer
}

// NewApp opens the store named by c.DatabaseDSN and builds both servers.
// logger may be nil, in which case JSON logs go to stdout.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewJSONLogger(os.Stdout, c.LogLevel)
	}

	hasher, err := auth.NewHasher(c.HashAlgorithm, c.BcryptCost)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService([]byte(c.SecretKey), c.TokenTTL)
	if err != nil {
		return nil, err
	}

	repos, err := repomanager.Open(ctx, c.DatabaseDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := metrics.NewMetrics()
	guard := auth.NewGuard(tokens)

	accountService := services.NewAccountService(repos.Accounts(), hasher, tokens, c.RepositoryTimeout, logger, m)
	avatarService := services.NewAvatarService(accountService, c)

	httpServer := httpapi.NewServer(c.HTTPAddr, httpapi.Deps{
		Accounts:   accountService,
		Avatars:    avatarService,
		Guard:      guard,
		Metrics:    m,
		StoreProbe: repos.Ping,
		Logger:     logger,
	})

	var grpcServer *gs.GRPCServer
	if c.GRPCAddr != "" {
		grpcServer = gs.NewGRPCServer(c.GRPCAddr, logger, guard, repos.Ping)
	}

	return &App{
		config:     c,
		logger:     logger,
		repos:      repos,
		httpServer: httpServer,
		grpcServer: grpcServer,
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// runServer runs one server; a failure stops the whole app.
func (app *App) runServer(ctx context.Context, cancelFunc context.CancelFunc, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil {
		app.logger.Error(ctx, "server failed", "server", name, "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a signal arrives, then closes the store.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.repos.Backend())

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runServer(ctx, cancelFunc, "http", app.httpServer.Run)
	}()

	if app.grpcServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.runServer(ctx, cancelFunc, "grpc", app.grpcServer.Run)
		}()
	}

	wg.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := app.repos.Close(closeCtx); err != nil {
		app.logger.Error(closeCtx, "closing store", "error", err)
	}

	app.logger.Info(closeCtx, "App stopped")
}
