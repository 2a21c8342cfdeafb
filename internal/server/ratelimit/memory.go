package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	per  time.Duration
	hits []time.Time
}

// MemoryBackend keeps counters in process memory. Counters are lost on
// restart and not shared between instances.
type MemoryBackend struct {
	mu   sync.Mutex
	keys map[string]*window
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{keys: map[string]*window{}}
}

func (m *MemoryBackend) Hit(ctx context.Context, key string, limit Limit, now time.Time) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.keys[key]
	if !ok {
		w = &window{per: limit.Per}
		m.keys[key] = w
	}
	w.prune(now)

	res := Result{Limit: limit.Count}
	if len(w.hits) < limit.Count {
		w.hits = append(w.hits, now)
		res.Allowed = true
	}
	res.Remaining = limit.Count - len(w.hits)
	res.ResetAfter = w.per
	if len(w.hits) > 0 {
		res.ResetAfter = w.hits[0].Add(w.per).Sub(now)
	}
	return res, nil
}

// Prune drops keys with no hits left inside their window and returns how
// many were removed.
func (m *MemoryBackend) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, w := range m.keys {
		w.prune(now)
		if len(w.hits) == 0 {
			delete(m.keys, k)
			n++
		}
	}
	return n
}

func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.per)
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}
