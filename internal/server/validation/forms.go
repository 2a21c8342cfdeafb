package validation

import (
	"regexp"
	"strings"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/shopspring/decimal"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Field names as they appear in request bodies and error maps.
const (
	FieldUsername          = "username"
	FieldEmail             = "email"
	FieldPassword          = "password"
	FieldPassword2         = "password2"
	FieldTransferType      = "transfer_type"
	FieldRecipientUsername = "recipient_username"
	FieldRecipientAccount  = "recipient_account"
	FieldAmount            = "amount"
	FieldAccountNumber     = "account_number"
	FieldStatus            = "status"
)

// NormalizeEmail lower-cases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type LoginForm struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate only checks presence; credential checks happen in the service.
func (f LoginForm) Validate() *Result {
	r := &Result{}
	Check(r, FieldUsername, f.Username, Required("Username field cannot be empty"))
	Check(r, FieldPassword, f.Password, Required("Password field cannot be empty"))
	return r
}

type RegistrationForm struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

// Validate checks format rules. Uniqueness is checked by the service, which
// adds its own field errors to the same Result.
func (f RegistrationForm) Validate() *Result {
	r := &Result{}
	Check(r, FieldUsername, f.Username,
		Required("Username field cannot be empty"),
		Length(4, 20, "Username must be between 4 and 20 characters long."),
		Matches(usernamePattern, "Username can only contain letters, numbers, underscores, dots, and hyphens."),
	)
	Check(r, FieldEmail, f.Email,
		Required("Email field cannot be empty"),
		Email("Invalid email address."),
	)
	checkPassword(r, FieldPassword, f.Password)
	Check(r, FieldPassword2, f.Password2,
		Required("Please repeat the password"),
		EqualTo(f.Password, "Passwords must match."),
	)
	return r
}

type ResetRequestForm struct {
	Email string `json:"email"`
}

func (f ResetRequestForm) Validate() *Result {
	r := &Result{}
	Check(r, FieldEmail, f.Email,
		Required("Email field cannot be empty"),
		Email("Invalid email address."),
	)
	return r
}

type ResetPasswordForm struct {
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

func (f ResetPasswordForm) Validate() *Result {
	r := &Result{}
	checkPassword(r, FieldPassword, f.Password)
	Check(r, FieldPassword2, f.Password2,
		Required("Please repeat the password"),
		EqualTo(f.Password, "Passwords must match."),
	)
	return r
}

type TransferForm struct {
	TransferType      string `json:"transfer_type"`
	RecipientUsername string `json:"recipient_username"`
	RecipientAccount  string `json:"recipient_account"`
	Amount            string `json:"amount"`
}

// Mode returns the selection mode, defaulting to username.
func (f TransferForm) Mode() string {
	if f.TransferType == "" {
		return common.RecipientByUsername
	}
	return f.TransferType
}

// Selector returns the recipient value for the chosen mode.
func (f TransferForm) Selector() string {
	if f.Mode() == common.RecipientByAccount {
		return strings.TrimSpace(f.RecipientAccount)
	}
	return strings.TrimSpace(f.RecipientUsername)
}

// ParseAmount checks the amount syntax only. Business rules on the amount
// and recipient are applied by the transfer service in their fixed order.
func (f TransferForm) ParseAmount() (decimal.Decimal, *Result) {
	r := &Result{}
	Check(r, FieldTransferType, f.Mode(),
		OneOf("Invalid transfer type", common.RecipientByUsername, common.RecipientByAccount))
	d, msg := ParseAmount(f.Amount)
	if msg == MsgAmountFormat {
		r.Add(FieldAmount, msg)
	}
	return d, r
}

type DepositForm struct {
	AccountNumber string `json:"account_number"`
	Amount        string `json:"amount"`
}

func (f DepositForm) Validate() (decimal.Decimal, *Result) {
	r := &Result{}
	Check(r, FieldAccountNumber, f.AccountNumber,
		Required("Account number is required"),
		Tag("numeric,len=10", "Account number must be 10 digits"),
	)
	d, msg := ParseAmount(f.Amount)
	if msg != "" {
		r.Add(FieldAmount, msg)
	}
	return d, r
}

type ProfileForm struct {
	Email       string `json:"email"`
	FirstName   string `json:"firstname"`
	LastName    string `json:"lastname"`
	Phone       string `json:"phone"`
	AddressLine string `json:"address_line"`
	PostalCode  string `json:"postal_code"`
}

func (f ProfileForm) Validate() *Result {
	r := &Result{}
	f.validateInto(r)
	return r
}

func (f ProfileForm) validateInto(r *Result) {
	Check(r, FieldEmail, f.Email,
		Required("Email field cannot be empty"),
		Email("Invalid email address."),
	)
	Check(r, "firstname", f.FirstName, Tag("max=50", "First name is too long"))
	Check(r, "lastname", f.LastName, Tag("max=50", "Last name is too long"))
	Check(r, "phone", f.Phone, Tag("max=20,e164|numeric", "Invalid phone number"))
	Check(r, "address_line", f.AddressLine, Tag("max=200", "Address is too long"))
	Check(r, "postal_code", f.PostalCode, Tag("max=10,alphanum", "Invalid postal code"))
}

// AdminUserForm is the profile form plus the account status.
type AdminUserForm struct {
	ProfileForm
	Status string `json:"status"`
}

func (f AdminUserForm) Validate() *Result {
	r := &Result{}
	f.validateInto(r)
	Check(r, FieldStatus, f.Status,
		Required("Status is required"),
		OneOf("Invalid status", common.StatusActive, common.StatusDeactivated, common.StatusPending),
	)
	return r
}
