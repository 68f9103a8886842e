package gateway

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tv := NewTokenValidator("test-secret")

	token, err := tv.Issue("u-42", "admin@medimart.io", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := tv.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u-42", claims.UserID)
	assert.Equal(t, "admin@medimart.io", claims.Email)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestExpiredTokenRejected(t *testing.T) {
	tv := NewTokenValidator("test-secret")

	token, err := tv.Issue("u-42", "a@b.c", "user", -time.Minute)
	require.NoError(t, err)

	_, err = tv.Validate(token)
	assert.Error(t, err)
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := NewTokenValidator("secret-a").Issue("u-1", "", "user", time.Hour)
	require.NoError(t, err)

	_, err = NewTokenValidator("secret-b").Validate(token)
	assert.Error(t, err)
}

func TestNonHMACAlgorithmRejected(t *testing.T) {
	// alg=none tokens must never pass.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u-1"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenValidator("test-secret").Validate(token)
	assert.Error(t, err)
}

func TestTokenWithoutSubjectRejected(t *testing.T) {
	tv := NewTokenValidator("test-secret")
	token, err := tv.Issue("", "", "user", time.Hour)
	require.NoError(t, err)

	_, err = tv.Validate(token)
	assert.Error(t, err)
}

func TestGarbageTokenRejected(t *testing.T) {
	_, err := NewTokenValidator("test-secret").Validate("not.a.token")
	assert.Error(t, err)
}
