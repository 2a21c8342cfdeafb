// Package users holds the credential store: persistence of bank users and
// their balances.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/server/models"
	"github.com/shopspring/decimal"
)

// Repository is the users store. Lookups return common.ErrorNotFound when no
// row matches; Create and UpdateProfile return common.ErrUsernameTaken,
// common.ErrEmailTaken or common.ErrAccountNumberTaken on unique conflicts.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)

	GetByID(ctx context.Context, id int64) (*models.User, error)
	// GetByIDForUpdate reads the row and locks it until the surrounding
	// transaction ends.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByAccountNumber(ctx context.Context, accountNumber string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)

	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	// UpdatePassword stores a new hash and clears any outstanding reset token.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetResetToken(ctx context.Context, id int64, jti string, expiresAt time.Time) error
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
	UpdateProfile(ctx context.Context, id int64, p models.ProfileUpdate) error
	UpdateStatus(ctx context.Context, id int64, status string) error
}
