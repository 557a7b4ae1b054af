package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestValidateUserIDClaim(t *testing.T) {
	v := NewValidator(testSecret)
	token := signToken(t, jwt.SigningMethodHS256, Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	sub, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", sub)
}

func TestValidateFallsBackToSubject(t *testing.T) {
	v := NewValidator(testSecret)
	token := signToken(t, jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u2",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	sub, err := v.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u2", sub)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "u1"}).
		SignedString([]byte("someone-else"))
	require.NoError(t, err)

	_, err = NewValidator(testSecret).Validate(other)
	assert.Error(t, err)
}

func TestValidateRejectsExpired(t *testing.T) {
	v := NewValidator(testSecret)
	token := signToken(t, jwt.SigningMethodHS256, Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := v.Validate(token)
	assert.Error(t, err)
}
