// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/logging"
	"github.com/dmitrijs2005/bankapp/internal/server/metrics"
	"github.com/dmitrijs2005/bankapp/internal/timex"
	"github.com/robfig/cron/v3"
)

// Pruner drops expired in-memory entries and reports how many went.
type Pruner interface {
	Prune(now time.Time) int
}

// TokenCleaner clears password reset tokens past their expiry.
type TokenCleaner interface {
	ClearExpiredResetTokens(ctx context.Context) (int64, error)
}

// Janitor prunes expired sessions, idle rate-limit windows and stale reset
// tokens. Any of the targets may be nil, e.g. when Redis expires keys on
// its own.
type Janitor struct {
	cron     *cron.Cron
	schedule string
	logger   logging.Logger
	metrics  *metrics.Metrics
	clock    timex.Clock

	Sessions   Pruner
	RateLimits Pruner
	Tokens     TokenCleaner
}

func NewJanitor(schedule string, logger logging.Logger, m *metrics.Metrics) *Janitor {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{logger: logger})))
	return &Janitor{
		cron:     c,
		schedule: schedule,
		logger:   logger,
		metrics:  m,
		clock:    timex.SystemClock,
	}
}

// RunOnce performs a single maintenance pass.
func (j *Janitor) RunOnce(ctx context.Context) {
	now := j.clock()

	if j.Sessions != nil {
		n := j.Sessions.Prune(now)
		j.metrics.Pruned("sessions", n)
		j.logger.Debug(ctx, "pruned sessions", "count", n)
	}
	if j.RateLimits != nil {
		n := j.RateLimits.Prune(now)
		j.metrics.Pruned("rate_limits", n)
		j.logger.Debug(ctx, "pruned rate limit windows", "count", n)
	}
	if j.Tokens != nil {
		n, err := j.Tokens.ClearExpiredResetTokens(ctx)
		if err != nil {
			j.logger.Error(ctx, "clearing expired reset tokens failed", "error", err)
			return
		}
		j.metrics.Pruned("reset_tokens", int(n))
		if n > 0 {
			j.logger.Info(ctx, "cleared expired reset tokens", "count", n)
		}
	}
}

// Start schedules RunOnce and starts the cron runner.
func (j *Janitor) Start(ctx context.Context) error {
	if _, err := j.cron.AddFunc(j.schedule, func() { j.RunOnce(ctx) }); err != nil {
		return err
	}
	j.logger.Info(ctx, "scheduled janitor", "schedule", j.schedule)
	j.cron.Start()
	return nil
}

// Stop stops scheduling; the returned context is done once a running pass
// has finished.
func (j *Janitor) Stop() context.Context {
	return j.cron.Stop()
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(context.Background(), "cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(context.Background(), "cron: "+msg, append(keysAndValues, "error", err)...)
}
