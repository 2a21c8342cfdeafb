package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/cryptox"
	"github.com/dmitrijs2005/bankapp/internal/timex"
)

// Manager creates, loads and destroys sessions and the cookies that carry
// their ids. Sessions expire after lifetime of inactivity; every successful
// Load pushes the expiry forward.
type Manager struct {
	store    Store
	lifetime time.Duration
	signKey  []byte
	secure   bool
	clock    timex.Clock
}

func NewManager(store Store, lifetime time.Duration, signKey []byte, secureCookie bool, clock timex.Clock) *Manager {
	if clock == nil {
		clock = timex.SystemClock
	}
	return &Manager{store: store, lifetime: lifetime, signKey: signKey, secure: secureCookie, clock: clock}
}

// Start issues a fresh session for userID. When previous is non-empty that
// session is destroyed first, so a login never reuses an id the client
// already had.
func (m *Manager) Start(ctx context.Context, previous string, userID int64) (*Session, error) {
	if previous != "" {
		if err := m.store.Delete(ctx, previous); err != nil {
			return nil, err
		}
	}

	id, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, err
	}

	now := m.clock()
	s := &Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: now.Add(m.lifetime),
	}
	if err := m.store.Create(ctx, s, m.lifetime); err != nil {
		return nil, err
	}
	return s, nil
}

// Load resolves the session named by the request cookie and slides its
// expiry. It returns ErrNotFound for a missing, forged or expired cookie,
// and for a session destroyed while the request was in flight.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	id := m.IDFromRequest(r)
	if id == "" {
		return nil, ErrNotFound
	}

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.clock()
	if !now.Before(s.ExpiresAt) {
		_ = m.store.Delete(ctx, id)
		return nil, ErrNotFound
	}

	if err := m.store.Touch(ctx, id, now, m.lifetime); err != nil {
		return nil, err
	}
	s.LastSeen = now
	s.ExpiresAt = now.Add(m.lifetime)
	return s, nil
}

// Save persists changes made to s (e.g. a pending transfer). It returns
// ErrNotFound when the session has since been destroyed or has expired.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	ttl := s.ExpiresAt.Sub(m.clock())
	if ttl <= 0 {
		return ErrNotFound
	}
	return m.store.Update(ctx, s, ttl)
}

// Destroy deletes the session. Unknown ids are not an error.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	err := m.store.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// IDFromRequest returns the verified session id from the cookie, or "".
func (m *Manager) IDFromRequest(r *http.Request) string {
	c, err := r.Cookie(common.SessionCookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	id, err := cryptox.Verify(c.Value, m.signKey)
	if err != nil {
		return ""
	}
	return id
}

// Cookie returns the signed session cookie for s.
func (m *Manager) Cookie(s *Session) *http.Cookie {
	return &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    cryptox.Sign(s.ID, m.signKey),
		Path:     "/",
		MaxAge:   int(m.lifetime.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie returns a cookie that removes the session cookie.
func (m *Manager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     common.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
