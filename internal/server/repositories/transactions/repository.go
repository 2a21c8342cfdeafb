// Package transactions persists the append-only money movement log.
package transactions

import (
	"context"

	"github.com/dmitrijs2005/bankapp/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.Transaction) error
	// ListByUser returns transactions where the user is sender or receiver,
	// newest first.
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error)
}
