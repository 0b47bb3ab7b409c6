// Package httpapi is the JSON boundary of the server, built on gin.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// Deps are the collaborators of the HTTP handlers. Avatars, Metrics and
// StoreProbe may be nil.
type Deps struct {
	Accounts   *services.AccountService
	Avatars    *services.AvatarService
	Guard      *auth.Guard
	Metrics    *metrics.Metrics
	StoreProbe func(ctx context.Context) error
	Logger     logging.Logger
}

type Server struct {
	address string
	logger  logging.Logger
	engine  *gin.Engine
}

func NewServer(address string, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logging.Nop{}
	}
	logger := d.Logger.With("module", "http_server")

	h := &handlers{
		accounts: d.Accounts,
		avatars:  d.Avatars,
		probe:    d.StoreProbe,
		logger:   logger,
	}

	return &Server{
		address: address,
		logger:  logger,
		engine:  newRouter(h, d.Guard, d.Metrics, logger),
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func newRouter(h *handlers, guard *auth.Guard, m *metrics.Metrics, logger logging.Logger) *gin.Engine {
	router := gin.New()
	router.Use(recovery(logger), requestLogger(logger), observe(m), cors())

	router.POST("/register", h.register)
	router.POST("/login", h.login)
	router.POST("/tokenIsValid", h.tokenIsValid)
	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	private := router.Group("/", requireAuth(guard))
	private.GET("/", h.profile)
	private.DELETE("/delete", h.delete)
	private.POST("/update", h.update)
	private.POST("/avatar", h.avatarUpload)
	private.GET("/avatar", h.avatarDownload)

	return router
}
