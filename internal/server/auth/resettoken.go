package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/timex"
	"github.com/golang-jwt/jwt/v5"
)

const resetAudience = "password-reset"

// ResetClaims are the claims of a password-reset token. The token id (jti)
// is a random nonce that must match the value stored on the user row.
type ResetClaims struct {
	jwt.RegisteredClaims
}

// UserID returns the numeric subject of the token.
func (c *ResetClaims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// ResetTokens issues and parses HS256 password-reset tokens.
type ResetTokens struct {
	secret   []byte
	validity time.Duration
	clock    timex.Clock
}

func NewResetTokens(secret []byte, validity time.Duration, clock timex.Clock) *ResetTokens {
	if clock == nil {
		clock = timex.SystemClock
	}
	return &ResetTokens{secret: secret, validity: validity, clock: clock}
}

// Issue mints a token for userID. It returns the signed token, its jti and
// the expiry to persist alongside the user.
func (t *ResetTokens) Issue(userID int64) (token, jti string, expiresAt time.Time, err error) {
	jti, err = common.MakeRandHexString(16)
	if err != nil {
		return "", "", time.Time{}, err
	}

	// JWT dates have whole-second precision; round the expiry up so the
	// token never dies before the full validity has passed.
	now := t.clock()
	expiresAt = now.Add(t.validity)
	if frac := expiresAt.Sub(expiresAt.Truncate(time.Second)); frac > 0 {
		expiresAt = expiresAt.Add(time.Second - frac)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, ResetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings{resetAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        jti,
		},
	})

	token, err = tok.SignedString(t.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiresAt, nil
}

// Parse validates signature, audience and expiry. It returns
// common.ErrTokenExpired for a well-formed but expired token and
// common.ErrTokenInvalid for anything else that fails.
func (t *ResetTokens) Parse(token string) (*ResetClaims, error) {
	claims := &ResetClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(resetAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrTokenInvalid
	}
	if !parsed.Valid || claims.ID == "" {
		return nil, common.ErrTokenInvalid
	}
	if _, err := claims.UserID(); err != nil {
		return nil, common.ErrTokenInvalid
	}
	return claims, nil
}
