// Package ratelimit caps requests per client within moving time windows.
// Limits are written like "200 per day" or "5/minute"; counters live in a
// Backend (in-process memory or Redis).
package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Limit allows Count requests in any window of length Per.
type Limit struct {
	Count int
	Per   time.Duration
}

var units = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"month":  30 * 24 * time.Hour,
	"year":   365 * 24 * time.Hour,
}

// Parse reads "N per [M] unit" or "N/[M]unit", e.g. "50 per hour",
// "10/second", "3 per 2 hours".
func Parse(s string) (Limit, error) {
	raw := strings.ToLower(strings.TrimSpace(s))

	var count, period string
	if c, p, ok := strings.Cut(raw, " per "); ok {
		count, period = c, p
	} else if c, p, ok := strings.Cut(raw, "/"); ok {
		count, period = c, p
	} else {
		return Limit{}, fmt.Errorf("invalid rate limit %q", s)
	}

	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || n <= 0 {
		return Limit{}, fmt.Errorf("invalid rate limit count in %q", s)
	}

	mult := 1
	fields := strings.Fields(period)
	switch len(fields) {
	case 1:
	case 2:
		mult, err = strconv.Atoi(fields[0])
		if err != nil || mult <= 0 {
			return Limit{}, fmt.Errorf("invalid rate limit multiplier in %q", s)
		}
		fields = fields[1:]
	default:
		return Limit{}, fmt.Errorf("invalid rate limit period in %q", s)
	}

	unit, ok := units[strings.TrimSuffix(fields[0], "s")]
	if !ok {
		return Limit{}, fmt.Errorf("unknown rate limit unit in %q", s)
	}

	return Limit{Count: n, Per: time.Duration(mult) * unit}, nil
}

// MustParse is Parse for constants; it panics on error.
func MustParse(s string) Limit {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// ParseAll parses every entry of specs, skipping blanks.
func ParseAll(specs []string) ([]Limit, error) {
	var out []Limit
	for _, s := range specs {
		if strings.TrimSpace(s) == "" {
			continue
		}
		l, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (l Limit) String() string {
	return fmt.Sprintf("%d per %s", l.Count, l.Per)
}

// keySuffix identifies the window in a counter key.
func (l Limit) keySuffix() string {
	return fmt.Sprintf("%d/%ds", l.Count, int64(l.Per/time.Second))
}
