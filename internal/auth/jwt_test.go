package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-16-chars!!"

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, 0)
	require.NoError(t, err)
	return ts
}

// sign builds a token with arbitrary claims and method, for the cases
// Generate never produces.
func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewTokenService(t *testing.T) {
	_, err := NewTokenService("short", 0)
	assert.Error(t, err)

	ts, err := NewTokenService("this-is-16-chars", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, ts.TTL())

	ts, err = NewTokenService("this-is-16-chars", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ts.TTL())
}

// =========================================================================
// GENERATE / VALIDATE
// =========================================================================

func TestGenerateValidate(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-123")
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	uid, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", uid)
}

func TestValidate_Expired(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.GenerateWithDuration("user-123", -time.Minute)
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	now := time.Now()
	valid := jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	other, err := NewTokenService("a-different-secret-entirely", 0)
	require.NoError(t, err)
	foreign, err := other.Generate("user-123")
	require.NoError(t, err)

	noSubject := valid
	noSubject.Subject = ""
	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	noExpiry := valid
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.jwt"},
		{"empty", ""},
		{"other secret", foreign},
		{"alg none", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid)},
		{"HS512", sign(t, jwt.SigningMethodHS512, []byte(testSecret), valid)},
		{"no subject", sign(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject)},
		{"wrong issuer", sign(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer)},
		{"no expiry", sign(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uid, err := ts.Validate(tt.token)
			assert.Error(t, err)
			assert.Empty(t, uid)
		})
	}
}
