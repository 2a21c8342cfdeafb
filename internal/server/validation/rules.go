package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// Rule checks one value and returns an error message, or "" when it passes.
type Rule func(value string) string

// Check runs rules against value in order and records every failure under
// field. When the first rule (normally Required) rejects a blank value the
// remaining rules are skipped.
func Check(r *Result, field, value string, rules ...Rule) {
	for i, rule := range rules {
		msg := rule(value)
		if msg == "" {
			continue
		}
		r.Add(field, msg)
		if i == 0 && strings.TrimSpace(value) == "" {
			return
		}
	}
}

// Required fails on an empty (or all-space) value. Put it first.
func Required(msg string) Rule {
	return func(v string) string {
		if strings.TrimSpace(v) == "" {
			return msg
		}
		return ""
	}
}

// Length bounds the number of characters in v.
func Length(min, max int, msg string) Rule {
	return func(v string) string {
		n := utf8.RuneCountInString(v)
		if n < min || (max > 0 && n > max) {
			return msg
		}
		return ""
	}
}

// Matches requires v to match re.
func Matches(re *regexp.Regexp, msg string) Rule {
	return func(v string) string {
		if !re.MatchString(v) {
			return msg
		}
		return ""
	}
}

// Email checks address syntax.
func Email(msg string) Rule {
	return func(v string) string {
		if validate.Var(v, "required,email,max=120") != nil {
			return msg
		}
		return ""
	}
}

// Tag applies a validator tag expression such as "max=50" or "numeric".
// Empty values pass, matching optional form fields.
func Tag(tag, msg string) Rule {
	return func(v string) string {
		if v == "" {
			return ""
		}
		if validate.Var(v, tag) != nil {
			return msg
		}
		return ""
	}
}

// EqualTo requires v to equal other.
func EqualTo(other, msg string) Rule {
	return func(v string) string {
		if v != other {
			return msg
		}
		return ""
	}
}

// OneOf requires v to be one of allowed.
func OneOf(msg string, allowed ...string) Rule {
	return func(v string) string {
		for _, a := range allowed {
			if v == a {
				return ""
			}
		}
		return msg
	}
}

const (
	MinPasswordLength = 8
	// bcrypt ignores input past 72 bytes and x/crypto rejects it outright.
	MaxPasswordBytes = 72
)

// Password policy messages.
const (
	MsgPasswordLength     = "Password must be at least 8 characters long."
	MsgPasswordTooLong    = "Password must be at most 72 bytes long."
	MsgPasswordCategories = "Password must contain at least three of the following: lowercase letters, uppercase letters, digits, and special characters."
)

// PasswordCategories counts how many of lowercase, uppercase, digit and
// special characters appear in p.
func PasswordCategories(p string) int {
	var lower, upper, digit, special bool
	for _, c := range p {
		switch {
		case unicode.IsLower(c):
			lower = true
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsDigit(c):
			digit = true
		case !unicode.IsLetter(c) && !unicode.IsNumber(c):
			special = true
		}
	}
	n := 0
	for _, ok := range []bool{lower, upper, digit, special} {
		if ok {
			n++
		}
	}
	return n
}

// PasswordPolicy returns every policy violation of p. An empty slice means
// the password is acceptable.
func PasswordPolicy(p string) []string {
	var msgs []string
	if utf8.RuneCountInString(p) < MinPasswordLength {
		msgs = append(msgs, MsgPasswordLength)
	}
	if len(p) > MaxPasswordBytes {
		msgs = append(msgs, MsgPasswordTooLong)
	}
	if PasswordCategories(p) < 3 {
		msgs = append(msgs, MsgPasswordCategories)
	}
	return msgs
}

func checkPassword(r *Result, field, p string) {
	if p == "" {
		r.Add(field, "Password field cannot be empty")
		return
	}
	for _, m := range PasswordPolicy(p) {
		r.Add(field, m)
	}
}

// Amount messages.
const (
	MsgAmountFormat   = "Amount must be a number"
	MsgAmountPositive = "Amount must be greater than 0"
	MsgAmountScale    = "Amount can have at most 2 decimal places"
)

// ParseAmount parses a money amount: a plain decimal number, strictly
// positive, with at most two fractional digits. The returned message is ""
// on success.
func ParseAmount(s string) (decimal.Decimal, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, MsgAmountPositive
	}
	d, err := decimal.NewFromString(s)
	if err != nil || strings.ContainsAny(s, "eE") {
		return decimal.Zero, MsgAmountFormat
	}
	return d, AmountRule(d)
}

// AmountRule validates an already parsed amount.
func AmountRule(d decimal.Decimal) string {
	if !d.IsPositive() {
		return MsgAmountPositive
	}
	if !d.Equal(d.Round(2)) {
		return MsgAmountScale
	}
	return ""
}
