package ratelimit

import (
	"context"
	"time"
)

// Result describes the state of one limit after a hit.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAfter is how long until the oldest hit in the window expires,
	// i.e. when at least one more request will be allowed.
	ResetAfter time.Duration
}

// Backend stores moving-window counters. Hit atomically drops hits older than
// now-limit.Per and, when fewer than limit.Count remain, records a new one.
type Backend interface {
	Hit(ctx context.Context, key string, limit Limit, now time.Time) (Result, error)
}
