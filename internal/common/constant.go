package common

// SessionCookieName is the cookie carrying the signed session id.
const SessionCookieName = "bank_session"

// Account statuses stored in users.status.
const (
	StatusActive      = "active"
	StatusDeactivated = "deactivated"
	StatusPending     = "pending"
)

// Transaction types stored in transactions.type.
const (
	TransactionTransfer = "transfer"
	TransactionDeposit  = "deposit"

	TransactionCompleted = "completed"
)

// Transfer recipient selection modes.
const (
	RecipientByUsername = "username"
	RecipientByAccount  = "account"
)

// AccountNumberLength is the number of digits in a generated account number.
const AccountNumberLength = 10
