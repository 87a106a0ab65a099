package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "signing-secret-32-chars-long!!!!"

func signToken(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	str, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return str
}

func userClaims(userID string, expiry time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   userID,
		Audience:  jwt.ClaimStrings{Audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
}

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier(testSecret)

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, testSecret, userClaims("user-123", 15*time.Minute))

		claims, err := v.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.UserID())
	})

	t.Run("garbage token fails", func(t *testing.T) {
		_, err := v.Verify("not-a-token")
		assert.Error(t, err)
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		token := signToken(t, "some-other-secret-32-chars-long!", userClaims("user-123", 15*time.Minute))

		_, err := v.Verify(token)
		assert.Error(t, err)
	})

	t.Run("expired token fails", func(t *testing.T) {
		token := signToken(t, testSecret, userClaims("user-exp", -time.Minute))

		_, err := v.Verify(token)
		assert.Error(t, err)
	})

	t.Run("wrong audience fails", func(t *testing.T) {
		claims := userClaims("user-123", 15*time.Minute)
		claims.Audience = jwt.ClaimStrings{"service_role"}
		token := signToken(t, testSecret, claims)

		_, err := v.Verify(token)
		assert.Error(t, err)
	})

	t.Run("missing subject fails", func(t *testing.T) {
		token := signToken(t, testSecret, userClaims("", 15*time.Minute))

		_, err := v.Verify(token)
		assert.Error(t, err)
	})
}
