package repomanager

import (
	"context"

	"github.com/dmitrijs2005/bankapp/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/bankapp/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/bankapp/internal/server/repositories/users"
)

// InMemoryRepositoryManager serves repositories from a memstore.Store.
type InMemoryRepositoryManager struct {
	store *memstore.Store
}

func NewInMemoryRepositoryManager(store *memstore.Store) *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{store: store}
}

func (m *InMemoryRepositoryManager) Users() users.Repository {
	return m.store.Users()
}

func (m *InMemoryRepositoryManager) Transactions() transactions.Repository {
	return m.store.Transactions()
}

// RunMigrations is a no-op: the in-memory schema needs no setup.
func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error {
	return nil
}

func (m *InMemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	return m.store.WithTx(ctx, func(ctx context.Context, u *memstore.UsersRepo, t *memstore.TransactionsRepo) error {
		return fn(ctx, memRepositories{users: u, txs: t})
	})
}

type memRepositories struct {
	users *memstore.UsersRepo
	txs   *memstore.TransactionsRepo
}

func (r memRepositories) Users() users.Repository               { return r.users }
func (r memRepositories) Transactions() transactions.Repository { return r.txs }
