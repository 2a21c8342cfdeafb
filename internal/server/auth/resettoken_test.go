package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTokens(t *testing.T) (*ResetTokens, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewResetTokens([]byte("super-secret"), time.Hour, clk.Now), clk
}

func TestResetTokens_IssueAndParse(t *testing.T) {
	tokens, clk := newTokens(t)

	tok, jti, exp, err := tokens.Issue(42)
	require.NoError(t, err)
	assert.Len(t, jti, 32)
	assert.Equal(t, clk.now.Add(time.Hour), exp)

	claims, err := tokens.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, jti, claims.ID)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestResetTokens_ExpiryWindow(t *testing.T) {
	tokens, clk := newTokens(t)
	tok, _, _, err := tokens.Issue(1)
	require.NoError(t, err)

	clk.now = clk.now.Add(time.Hour - time.Second)
	_, err = tokens.Parse(tok)
	assert.NoError(t, err)

	clk.now = clk.now.Add(2 * time.Second)
	_, err = tokens.Parse(tok)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestResetTokens_SubSecondIssueKeepsFullValidity(t *testing.T) {
	tokens, clk := newTokens(t)
	issued := time.Date(2030, 1, 1, 12, 0, 0, 900_000_000, time.UTC)
	clk.now = issued

	tok, _, exp, err := tokens.Issue(42)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2030, 1, 1, 13, 0, 1, 0, time.UTC), exp)

	clk.now = issued.Add(59*time.Minute + 59*time.Second + 500*time.Millisecond)
	_, err = tokens.Parse(tok)
	assert.NoError(t, err)

	clk.now = issued.Add(time.Hour + time.Second)
	_, err = tokens.Parse(tok)
	assert.Equal(t, common.ErrTokenExpired, err)
}

func TestResetTokens_UniquePerIssue(t *testing.T) {
	tokens, _ := newTokens(t)

	t1, j1, _, err := tokens.Issue(1)
	require.NoError(t, err)
	t2, j2, _, err := tokens.Issue(1)
	require.NoError(t, err)

	assert.NotEqual(t, j1, j2)
	assert.NotEqual(t, t1, t2)
}

func TestResetTokens_Invalid(t *testing.T) {
	tokens, clk := newTokens(t)
	other := NewResetTokens([]byte("other-secret"), time.Hour, clk.Now)

	foreign, _, _, err := other.Issue(1)
	require.NoError(t, err)

	good, _, _, err := tokens.Issue(1)
	require.NoError(t, err)
	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	noAudience, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		ID:        "abc",
		ExpiresAt: jwt.NewNumericDate(clk.now.Add(time.Hour)),
	}).SignedString([]byte("super-secret"))
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, ResetClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		ID:        "abc",
		Audience:  jwt.ClaimStrings{resetAudience},
		ExpiresAt: jwt.NewNumericDate(clk.now.Add(time.Hour)),
	}}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, ResetClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "alice",
		ID:        "abc",
		Audience:  jwt.ClaimStrings{resetAudience},
		ExpiresAt: jwt.NewNumericDate(clk.now.Add(time.Hour)),
	}}).SignedString([]byte("super-secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":      "not.a.jwt",
		"empty":        "",
		"wrong secret": foreign,
		"tampered":     tampered,
		"no audience":  noAudience,
		"alg none":     noneAlg,
		"non-numeric":  badSubject,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tokens.Parse(tok)
			assert.ErrorIs(t, err, common.ErrTokenInvalid)
		})
	}
}
