package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an append-only record of a completed money movement.
// SenderID is nil for deposits.
type Transaction struct {
	ID         string
	SenderID   *int64
	ReceiverID int64
	Amount     decimal.Decimal
	Type       string
	Status     string
	CreatedAt  time.Time

	// Filled by history queries for display.
	SenderUsername   string
	ReceiverUsername string
}

// PendingTransfer is a validated transfer awaiting confirmation. It lives in
// the sender's session until confirmed, cancelled or expired.
type PendingTransfer struct {
	ID                     string          `json:"id"`
	SenderID               int64           `json:"sender_id"`
	RecipientID            int64           `json:"recipient_id"`
	RecipientUsername      string          `json:"recipient_username"`
	RecipientAccountNumber string          `json:"recipient_account_number"`
	Amount                 decimal.Decimal `json:"amount"`
	Mode                   string          `json:"mode"`
	CreatedAt              time.Time       `json:"created_at"`
	ExpiresAt              time.Time       `json:"expires_at"`
}

// Expired reports whether the pending transfer can no longer be confirmed.
func (p *PendingTransfer) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
