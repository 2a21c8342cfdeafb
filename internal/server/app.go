// Package server wires the bank application together: it picks the store,
// session and rate-limit backends from the config, starts the maintenance
// janitor and serves the HTTP API until a shutdown signal arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/cryptox"
	"github.com/dmitrijs2005/bankapp/internal/logging"
	"github.com/dmitrijs2005/bankapp/internal/redisx"
	"github.com/dmitrijs2005/bankapp/internal/server/auth"
	"github.com/dmitrijs2005/bankapp/internal/server/config"
	"github.com/dmitrijs2005/bankapp/internal/server/httpapi"
	"github.com/dmitrijs2005/bankapp/internal/server/jobs"
	"github.com/dmitrijs2005/bankapp/internal/server/metrics"
	"github.com/dmitrijs2005/bankapp/internal/server/notify"
	"github.com/dmitrijs2005/bankapp/internal/server/ratelimit"
	"github.com/dmitrijs2005/bankapp/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bankapp/internal/server/services"
	"github.com/dmitrijs2005/bankapp/internal/server/session"
	"github.com/redis/go-redis/v9"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	events  notify.Publisher
	server  *httpapi.Server
	janitor *jobs.Janitor
	closers []func() error
}

// Secret returns the configured secret key, or a random one when none is
// set. A random key invalidates sessions and reset links on restart.
func Secret(ctx context.Context, cfg *config.Config, logger logging.Logger) ([]byte, error) {
	if cfg.SecretKey != "" {
		return []byte(cfg.SecretKey), nil
	}
	key, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, fmt.Errorf("generate secret key: %w", err)
	}
	logger.Warn(ctx, "SECRET_KEY is not set, generated a random one; sessions and reset links will not survive a restart")
	return []byte(key), nil
}

func routeLimits(cfg *config.Config) (httpapi.RouteLimits, error) {
	var out httpapi.RouteLimits
	for _, f := range []struct {
		dst  *[]ratelimit.Limit
		spec string
	}{
		{&out.Login, cfg.RateLimitLogin},
		{&out.ResetRequest, cfg.RateLimitResetRequest},
		{&out.ResetConfirm, cfg.RateLimitResetConfirm},
		{&out.Register, cfg.RateLimitRegister},
		{&out.Transfer, cfg.RateLimitTransfer},
	} {
		if f.spec == "" {
			continue
		}
		l, err := ratelimit.Parse(f.spec)
		if err != nil {
			return out, err
		}
		*f.dst = []ratelimit.Limit{l}
	}
	return out, nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: c, logger: logger}
	ok := false
	defer func() {
		if !ok {
			app.close(ctx)
		}
	}()

	secret, err := Secret(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	repos, closeDB, err := OpenRepositories(ctx, c.DatabaseDSN, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeDB)
	app.repos = repos

	m := metrics.New("bankapp")
	janitor := jobs.NewJanitor(c.JanitorSchedule, logger, m)

	var (
		sessionStore session.Store
		backend      ratelimit.Backend
	)
	if c.RedisURL != "" {
		var client *redis.Client
		client, err = redisx.NewClient(ctx, c.RedisURL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, client.Close)
		sessionStore = session.NewRedisStore(client, "bankapp:session", cryptox.DeriveKey(secret, "session-store"))
		backend = ratelimit.NewRedisBackend(client)
	} else {
		memSessions := session.NewMemoryStore()
		memLimits := ratelimit.NewMemoryBackend()
		janitor.Sessions, janitor.RateLimits = memSessions, memLimits
		sessionStore, backend = memSessions, memLimits
	}

	defaults, err := ratelimit.ParseAll(c.RateLimitDefaults)
	if err != nil {
		return nil, fmt.Errorf("rate limit defaults: %w", err)
	}
	limits, err := routeLimits(c)
	if err != nil {
		return nil, fmt.Errorf("route rate limits: %w", err)
	}

	app.events = notify.Connect(ctx, c.RabbitMQURL, c.EventsExchange, logger)
	app.closers = append(app.closers, app.events.Close)

	tokens := auth.NewResetTokens(cryptox.DeriveKey(secret, "password-reset"), c.ResetTokenValidity, nil)
	users := services.NewUserService(repos, auth.NewBcryptHasher(c.BcryptCost), tokens, app.events, logger, c)
	transfers := services.NewTransferService(repos, logger, m, c)
	statements := services.NewStatementService(transfers, logger, c)
	janitor.Tokens = users
	app.janitor = janitor

	app.server = httpapi.NewServer(c.EndpointAddrHTTP, httpapi.Deps{
		Logger:     logger,
		Users:      users,
		Transfers:  transfers,
		Statements: statements,
		Sessions:   session.NewManager(sessionStore, c.SessionLifetime, cryptox.DeriveKey(secret, "session-cookie"), c.CookieSecure, nil),
		Limiter:    ratelimit.NewLimiter(backend, c.RateLimitPrefix, defaults, nil),
		Limits:     limits,
		Penalty:    c.RateLimitPenalty,
		Metrics:    m,
	})

	ok = true
	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run migrates the store, then serves until a signal or a fatal server
// error cancels the context.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	defer app.close(context.Background())

	app.logger.Info(ctx, "Starting app...")

	if err := app.repos.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	if err := app.janitor.Start(ctx); err != nil {
		return fmt.Errorf("janitor: %w", err)
	}
	defer func() { <-app.janitor.Stop().Done() }()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.logger.Info(ctx, "App stopped")
	return nil
}

func (app *App) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(ctx, "close failed", "error", err)
		}
	}
	app.closers = nil
}
