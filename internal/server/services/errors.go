// Package services implements the bank's use cases on top of the repository
// manager: authentication, password reset, transfers, deposits, account
// administration and statement export.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/logging"
)

// passThrough lists the errors services may return to callers unchanged.
var passThrough = []error{
	common.ErrorNotFound,
	common.ErrorForbidden,
	common.ErrorUnauthorized,
	common.ErrorDisabled,
	common.ErrInvalidCredentials,
	common.ErrAccountDeactivated,
	common.ErrAccountPending,
	common.ErrUsernameTaken,
	common.ErrEmailTaken,
	common.ErrInvalidAmount,
	common.ErrMissingRecipient,
	common.ErrRecipientNotFound,
	common.ErrSelfTransfer,
	common.ErrInsufficientFunds,
	common.ErrAccountNotFound,
	common.ErrNoPendingTransfer,
	common.ErrPendingTransferGone,
	common.ErrTokenInvalid,
	common.ErrTokenExpired,
	common.ErrTokenUnknown,
}

// storeFailure logs err and replaces it with common.ErrorInternal unless it is
// one of the domain errors callers know how to present.
func storeFailure(ctx context.Context, logger logging.Logger, op string, err error) error {
	for _, known := range passThrough {
		if errors.Is(err, known) {
			return err
		}
	}
	logger.Error(ctx, "store operation failed", "op", op, "error", err)
	return common.ErrorInternal
}

// withTimeout bounds a service call by the configured store timeout.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
