// Package session keeps server-side login sessions. The browser only holds
// a signed session id; everything else lives in a Store.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/server/models"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Session is one authenticated browser session.
type Session struct {
	ID        string                  `json:"-"`
	UserID    int64                   `json:"user_id"`
	CreatedAt time.Time               `json:"created_at"`
	LastSeen  time.Time               `json:"last_seen"`
	ExpiresAt time.Time               `json:"expires_at"`
	Pending   *models.PendingTransfer `json:"pending,omitempty"`
}

// Store persists sessions by id. Only Create may bring a session into
// existence; Update and Touch return ErrNotFound once it has been deleted or
// has expired, so a request racing a logout cannot resurrect the session.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	// Create writes a new session with the given TTL.
	Create(ctx context.Context, s *Session, ttl time.Duration) error
	// Update replaces the contents of an existing session.
	Update(ctx context.Context, s *Session, ttl time.Duration) error
	// Touch records activity at now and moves the expiry to now+ttl
	// without rewriting the session contents.
	Touch(ctx context.Context, id string, now time.Time, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]Session{}, now: time.Now}
}

// live returns the stored session if it exists and has not expired.
// Callers hold m.mu.
func (m *MemoryStore) live(id string) (Session, bool) {
	s, ok := m.sessions[id]
	if !ok || !m.now().Before(s.ExpiresAt) {
		return Session{}, false
	}
	return s, true
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.live(id)
	if !ok {
		return nil, ErrNotFound
	}
	s.ID = id
	if s.Pending != nil {
		p := *s.Pending
		s.Pending = &p
	}
	return &s, nil
}

func (m *MemoryStore) Create(_ context.Context, s *Session, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(s)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, s *Session, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(s.ID); !ok {
		return ErrNotFound
	}
	m.put(s)
	return nil
}

func (m *MemoryStore) Touch(_ context.Context, id string, now time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.live(id)
	if !ok {
		return ErrNotFound
	}
	s.LastSeen = now
	s.ExpiresAt = now.Add(ttl)
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) put(s *Session) {
	c := *s
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	m.sessions[s.ID] = c
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// Prune removes expired sessions and returns how many were dropped.
func (m *MemoryStore) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
