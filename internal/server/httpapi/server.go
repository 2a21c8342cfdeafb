// Package httpapi exposes the bank over HTTP: a chi router, the rate-limit,
// session and admin middleware, and JSON handlers on top of the services.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/logging"
	"github.com/dmitrijs2005/bankapp/internal/server/metrics"
	"github.com/dmitrijs2005/bankapp/internal/server/ratelimit"
	"github.com/dmitrijs2005/bankapp/internal/server/services"
	"github.com/dmitrijs2005/bankapp/internal/server/session"
	"github.com/dmitrijs2005/bankapp/internal/timex"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouteLimits are the route-specific limits applied on top of the limiter's
// default tiers.
type RouteLimits struct {
	Login        []ratelimit.Limit
	ResetRequest []ratelimit.Limit
	ResetConfirm []ratelimit.Limit
	Register     []ratelimit.Limit
	Transfer     []ratelimit.Limit
}

// Deps lists everything the HTTP layer needs.
type Deps struct {
	Logger     logging.Logger
	Users      *services.UserService
	Transfers  *services.TransferService
	Statements *services.StatementService
	Sessions   *session.Manager
	Limiter    *ratelimit.Limiter
	Limits     RouteLimits
	Penalty    time.Duration
	Metrics    *metrics.Metrics
}

type Server struct {
	address    string
	logger     logging.Logger
	users      *services.UserService
	transfers  *services.TransferService
	statements *services.StatementService
	sessions   *session.Manager
	limiter    *ratelimit.Limiter
	limits     RouteLimits
	penalty    time.Duration
	metrics    *metrics.Metrics
	clock      timex.Clock
	sleep      func(ctx context.Context, d time.Duration)
}

func NewServer(address string, d Deps) *Server {
	return &Server{
		address:    address,
		logger:     d.Logger.With("module", "http_server"),
		users:      d.Users,
		transfers:  d.Transfers,
		statements: d.Statements,
		sessions:   d.Sessions,
		limiter:    d.Limiter,
		limits:     d.Limits,
		penalty:    d.Penalty,
		metrics:    d.Metrics,
		clock:      timex.SystemClock,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.With(s.rateLimit("register", s.limits.Register)).Post("/register", s.register)
	r.With(s.rateLimit("login", s.limits.Login)).Post("/login", s.login)
	r.With(s.rateLimit("logout", nil)).Post("/logout", s.logout)

	r.Route("/reset_password_request", func(r chi.Router) {
		r.Use(s.rateLimit("reset_request", s.limits.ResetRequest))
		r.Get("/", s.resetRequestInfo)
		r.Post("/", s.resetRequest)
	})
	r.Route("/reset_password/{token}", func(r chi.Router) {
		r.Use(s.rateLimit("reset_confirm", s.limits.ResetConfirm))
		r.Get("/", s.verifyReset)
		r.Post("/", s.resetPassword)
	})

	// Limits run before the session lookup so unauthenticated floods are
	// counted too.
	r.Route("/transfer", func(r chi.Router) {
		r.Use(s.rateLimit("transfer", s.limits.Transfer))
		r.Use(s.requireSession)
		r.Post("/", s.initiateTransfer)
		r.Post("/confirm", s.confirmTransfer)
		r.Post("/cancel", s.cancelTransfer)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit("account", nil))
		r.Use(s.requireSession)
		r.Get("/api/account", s.account)
		r.Post("/api/account/profile", s.updateProfile)
		r.Post("/api/account/statement", s.exportStatement)
		r.Get("/api/transactions", s.history)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit("deposit", nil))
		r.Use(s.requireSession, s.requireAdmin)
		r.Post("/deposit", s.deposit)
	})

	r.Route("/api/admin/users", func(r chi.Router) {
		r.Use(s.rateLimit("admin", nil))
		r.Use(s.requireSession, s.requireAdmin)
		r.Get("/", s.adminListUsers)
		r.Get("/{id}", s.adminGetUser)
		r.Post("/{id}", s.adminUpdateUser)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
