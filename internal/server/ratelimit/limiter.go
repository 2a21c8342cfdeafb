package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/timex"
)

// RateLimitError is returned when a request exceeds a limit.
type RateLimitError struct {
	Limit      Limit
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded: %s", e.Limit)
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least 1.
func (e *RateLimitError) RetryAfterSeconds() int {
	s := int((e.RetryAfter + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

// Limiter applies the default tiers plus route-specific limits to a
// (scope, subject) pair, where scope names the route and subject the client.
type Limiter struct {
	backend  Backend
	prefix   string
	defaults []Limit
	clock    timex.Clock
}

func NewLimiter(backend Backend, prefix string, defaults []Limit, clock timex.Clock) *Limiter {
	if clock == nil {
		clock = timex.SystemClock
	}
	return &Limiter{
		backend:  backend,
		prefix:   strings.TrimSuffix(strings.TrimSpace(prefix), ":"),
		defaults: defaults,
		clock:    clock,
	}
}

// Allow records a hit against every applicable limit, route-specific ones
// first. It stops at the first limit that rejects the hit and returns a
// *RateLimitError for it. On success the returned Result is the one with
// the fewest remaining requests, for response headers.
func (l *Limiter) Allow(ctx context.Context, scope, subject string, specific ...Limit) (Result, error) {
	now := l.clock()

	var strictest *Result
	check := func(kind string, lim Limit) (Result, error) {
		key := fmt.Sprintf("%s:%s:%s:%s%s", l.prefix, scope, subject, kind, lim.keySuffix())
		res, err := l.backend.Hit(ctx, key, lim, now)
		if err != nil {
			return Result{}, fmt.Errorf("rate limit backend: %w", err)
		}
		if !res.Allowed {
			return res, &RateLimitError{Limit: lim, RetryAfter: res.ResetAfter}
		}
		if strictest == nil || res.Remaining < strictest.Remaining {
			r := res
			strictest = &r
		}
		return res, nil
	}

	for _, lim := range specific {
		if res, err := check("", lim); err != nil {
			return res, err
		}
	}
	for _, lim := range l.defaults {
		if res, err := check("d", lim); err != nil {
			return res, err
		}
	}

	if strictest == nil {
		return Result{Allowed: true}, nil
	}
	return *strictest, nil
}
