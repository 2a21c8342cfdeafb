// Package repomanager vends repository implementations for the configured
// backend and runs units of work inside a transaction.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/bankapp/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/bankapp/internal/server/repositories/users"
)

// Repositories is the set of stores available to a unit of work.
type Repositories interface {
	Users() users.Repository
	Transactions() transactions.Repository
}

// RepositoryManager exposes non-transactional repositories plus WithTx.
// Repositories handed to the WithTx callback share one transaction: it
// commits when the callback returns nil and rolls back otherwise.
type RepositoryManager interface {
	Repositories
	RunMigrations(ctx context.Context) error
	WithTx(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
}
