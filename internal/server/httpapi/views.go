package httpapi

import (
	"time"

	"github.com/dmitrijs2005/bankapp/internal/server/models"
)

type userView struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	AccountNumber string    `json:"account_number"`
	Balance       string    `json:"balance"`
	Status        string    `json:"status"`
	IsAdmin       bool      `json:"is_admin"`
	FirstName     string    `json:"firstname,omitempty"`
	LastName      string    `json:"lastname,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	AddressLine   string    `json:"address_line,omitempty"`
	PostalCode    string    `json:"postal_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newUserView(u *models.User) userView {
	return userView{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		AccountNumber: u.AccountNumber,
		Balance:       u.Balance.StringFixed(2),
		Status:        u.Status,
		IsAdmin:       u.IsAdmin,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		AddressLine:   u.AddressLine,
		PostalCode:    u.PostalCode,
		CreatedAt:     u.CreatedAt,
	}
}

type transactionView struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Amount    string    `json:"amount"`
	Direction string    `json:"direction"`
	Sender    string    `json:"sender,omitempty"`
	Receiver  string    `json:"receiver"`
	CreatedAt time.Time `json:"created_at"`
}

// newTransactionView renders t from the point of view of userID.
func newTransactionView(t *models.Transaction, userID int64) transactionView {
	direction := "in"
	if t.SenderID != nil && *t.SenderID == userID {
		direction = "out"
	}
	return transactionView{
		ID:        t.ID,
		Type:      t.Type,
		Status:    t.Status,
		Amount:    t.Amount.StringFixed(2),
		Direction: direction,
		Sender:    t.SenderUsername,
		Receiver:  t.ReceiverUsername,
		CreatedAt: t.CreatedAt,
	}
}

type pendingView struct {
	ID                     string    `json:"id"`
	RecipientUsername      string    `json:"recipient_username"`
	RecipientAccountNumber string    `json:"recipient_account_number"`
	Amount                 string    `json:"amount"`
	ExpiresAt              time.Time `json:"expires_at"`
}

func newPendingView(p *models.PendingTransfer) pendingView {
	return pendingView{
		ID:                     p.ID,
		RecipientUsername:      p.RecipientUsername,
		RecipientAccountNumber: p.RecipientAccountNumber,
		Amount:                 p.Amount.StringFixed(2),
		ExpiresAt:              p.ExpiresAt,
	}
}
