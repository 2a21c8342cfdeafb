// Package models defines server-side data models persisted in the store.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a bank customer together with their single account.
type User struct {
	ID            int64
	Username      string
	Email         string
	PasswordHash  string
	AccountNumber string
	Balance       decimal.Decimal
	Status        string
	IsAdmin       bool

	FirstName   string
	LastName    string
	Phone       string
	AddressLine string
	PostalCode  string

	// ResetToken holds the jti of the outstanding password reset token.
	ResetToken       *string
	ResetTokenExpiry *time.Time

	CreatedAt time.Time
}

// Clone returns a deep copy, so callers can mutate it without touching a
// stored instance.
func (u *User) Clone() *User {
	c := *u
	if u.ResetToken != nil {
		t := *u.ResetToken
		c.ResetToken = &t
	}
	if u.ResetTokenExpiry != nil {
		e := *u.ResetTokenExpiry
		c.ResetTokenExpiry = &e
	}
	return &c
}

// ProfileUpdate lists the fields a user (or an admin on their behalf) may edit.
type ProfileUpdate struct {
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	AddressLine string
	PostalCode  string
}
