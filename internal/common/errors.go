// Package common defines shared constants and sentinel errors used across
// the bank server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Authentication errors. ErrInvalidCredentials is deliberately used for
	// both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrAccountPending     = errors.New("account pending activation")

	// Registration / profile conflicts.
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already in use")

	// ErrAccountNumberTaken signals a generated account number collided.
	ErrAccountNumberTaken = errors.New("account number already in use")

	// Transfer engine errors.
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrMissingRecipient    = errors.New("missing recipient")
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrSelfTransfer        = errors.New("cannot transfer to own account")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAccountNotFound     = errors.New("account not found")
	ErrNoPendingTransfer   = errors.New("no pending transfer")
	ErrPendingTransferGone = errors.New("pending transfer expired")

	// Reset token errors.
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenUnknown = errors.New("unknown token")

	// Feature switched off by configuration.
	ErrorDisabled = errors.New("disabled")
)
