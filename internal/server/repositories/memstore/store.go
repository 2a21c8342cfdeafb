// Package memstore is an in-memory credential and transaction store used
// when no database is configured, and as a fast backend in tests.
//
// Every operation runs under one mutex. WithTx holds it for the whole
// callback and restores a snapshot when the callback fails, which gives the
// same all-or-nothing behaviour as a database transaction.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/server/models"
	"github.com/shopspring/decimal"
)

type state struct {
	nextID int64
	users  map[int64]*models.User
	txs    []*models.Transaction
}

func (st *state) snapshot() *state {
	c := &state{nextID: st.nextID, users: make(map[int64]*models.User, len(st.users))}
	for id, u := range st.users {
		c.users[id] = u.Clone()
	}
	c.txs = append([]*models.Transaction(nil), st.txs...)
	return c
}

// Store holds all users and transactions.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

func New() *Store {
	return &Store{
		state: &state{users: map[int64]*models.User{}},
		now:   time.Now,
	}
}

// Users returns a handle that locks the store per call.
func (s *Store) Users() *UsersRepo {
	return &UsersRepo{s: s}
}

// Transactions returns a handle that locks the store per call.
func (s *Store) Transactions() *TransactionsRepo {
	return &TransactionsRepo{s: s}
}

// WithTx runs fn with exclusive access to the store. The handles passed to fn
// must not be used after fn returns, and fn must not call Users or
// Transactions on s itself.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, users *UsersRepo, txs *TransactionsRepo) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.state.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.state = saved
			panic(p)
		}
		if err != nil {
			s.state = saved
		}
	}()

	return fn(ctx, &UsersRepo{s: s, locked: true}, &TransactionsRepo{s: s, locked: true})
}

func (s *Store) run(ctx context.Context, locked bool, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !locked {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.state)
}

// UsersRepo implements users.Repository over the store.
type UsersRepo struct {
	s      *Store
	locked bool
}

func (r *UsersRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	var out *models.User
	err := r.s.run(ctx, r.locked, func(st *state) error {
		for _, u := range st.users {
			switch {
			case u.Username == user.Username:
				return common.ErrUsernameTaken
			case u.Email == user.Email:
				return common.ErrEmailTaken
			case u.AccountNumber == user.AccountNumber:
				return common.ErrAccountNumberTaken
			}
		}
		st.nextID++
		user.ID = st.nextID
		user.CreatedAt = r.s.now()
		user.Balance = user.Balance.Round(2)
		st.users[user.ID] = user.Clone()
		out = user
		return nil
	})
	return out, err
}

func (r *UsersRepo) find(ctx context.Context, match func(u *models.User) bool) (*models.User, error) {
	var out *models.User
	err := r.s.run(ctx, r.locked, func(st *state) error {
		for _, u := range st.users {
			if match(u) {
				out = u.Clone()
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return out, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var out *models.User
	err := r.s.run(ctx, r.locked, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = u.Clone()
		return nil
	})
	return out, err
}

// GetByIDForUpdate is GetByID: the store mutex already serialises writers.
func (r *UsersRepo) GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.find(ctx, func(u *models.User) bool { return u.Username == username })
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(ctx, func(u *models.User) bool { return u.Email == email })
}

func (r *UsersRepo) GetByAccountNumber(ctx context.Context, accountNumber string) (*models.User, error) {
	return r.find(ctx, func(u *models.User) bool { return u.AccountNumber == accountNumber })
}

func (r *UsersRepo) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	var out []*models.User
	err := r.s.run(ctx, r.locked, func(st *state) error {
		ids := make([]int64, 0, len(st.users))
		for id := range st.users {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for i, id := range ids {
			if i < offset {
				continue
			}
			if len(out) == limit {
				break
			}
			out = append(out, st.users[id].Clone())
		}
		return nil
	})
	return out, err
}

func (r *UsersRepo) update(ctx context.Context, id int64, fn func(st *state, u *models.User) error) error {
	return r.s.run(ctx, r.locked, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return common.ErrorNotFound
		}
		return fn(st, u)
	})
}

func (r *UsersRepo) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	return r.update(ctx, id, func(_ *state, u *models.User) error {
		if balance.IsNegative() {
			return common.ErrInsufficientFunds
		}
		u.Balance = balance.Round(2)
		return nil
	})
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.update(ctx, id, func(_ *state, u *models.User) error {
		u.PasswordHash = passwordHash
		u.ResetToken = nil
		u.ResetTokenExpiry = nil
		return nil
	})
}

func (r *UsersRepo) SetResetToken(ctx context.Context, id int64, jti string, expiresAt time.Time) error {
	return r.update(ctx, id, func(_ *state, u *models.User) error {
		u.ResetToken = &jti
		u.ResetTokenExpiry = &expiresAt
		return nil
	})
}

func (r *UsersRepo) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.s.run(ctx, r.locked, func(st *state) error {
		for _, u := range st.users {
			if u.ResetToken != nil && u.ResetTokenExpiry != nil && !u.ResetTokenExpiry.After(now) {
				u.ResetToken = nil
				u.ResetTokenExpiry = nil
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id int64, p models.ProfileUpdate) error {
	return r.update(ctx, id, func(st *state, u *models.User) error {
		for other, o := range st.users {
			if other != id && o.Email == p.Email {
				return common.ErrEmailTaken
			}
		}
		u.Email = p.Email
		u.FirstName = p.FirstName
		u.LastName = p.LastName
		u.Phone = p.Phone
		u.AddressLine = p.AddressLine
		u.PostalCode = p.PostalCode
		return nil
	})
}

func (r *UsersRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.update(ctx, id, func(_ *state, u *models.User) error {
		u.Status = status
		return nil
	})
}

// TransactionsRepo implements transactions.Repository over the store.
type TransactionsRepo struct {
	s      *Store
	locked bool
}

func (r *TransactionsRepo) Create(ctx context.Context, t *models.Transaction) error {
	return r.s.run(ctx, r.locked, func(st *state) error {
		if _, ok := st.users[t.ReceiverID]; !ok {
			return common.ErrorNotFound
		}
		if t.SenderID != nil {
			if _, ok := st.users[*t.SenderID]; !ok {
				return common.ErrorNotFound
			}
		}
		for _, existing := range st.txs {
			if existing.ID == t.ID {
				return common.ErrorAlreadyExists
			}
		}
		t.CreatedAt = r.s.now()
		c := *t
		st.txs = append(st.txs, &c)
		return nil
	})
}

func (r *TransactionsRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error) {
	var out []*models.Transaction
	err := r.s.run(ctx, r.locked, func(st *state) error {
		for i := len(st.txs) - 1; i >= 0 && len(out) < limit; i-- {
			t := st.txs[i]
			if t.ReceiverID != userID && (t.SenderID == nil || *t.SenderID != userID) {
				continue
			}
			c := *t
			if t.SenderID != nil {
				if u, ok := st.users[*t.SenderID]; ok {
					c.SenderUsername = u.Username
				}
			}
			if u, ok := st.users[t.ReceiverID]; ok {
				c.ReceiverUsername = u.Username
			}
			out = append(out, &c)
		}
		return nil
	})
	return out, err
}
