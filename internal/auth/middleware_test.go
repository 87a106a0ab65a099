package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(captured **Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = GetUserClaims(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier(testSecret)

	t.Run("valid bearer token passes claims through", func(t *testing.T) {
		var got *Claims
		handler := Middleware(v)(okHandler(&got))

		token := signToken(t, testSecret, userClaims("user-123", 15*time.Minute))
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, got)
		assert.Equal(t, "user-123", got.UserID())
	})

	t.Run("missing header is 401", func(t *testing.T) {
		handler := Middleware(v)(okHandler(nil))

		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header is 401", func(t *testing.T) {
		handler := Middleware(v)(okHandler(nil))

		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token is 403", func(t *testing.T) {
		handler := Middleware(v)(okHandler(nil))

		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestInternalMiddleware(t *testing.T) {
	t.Run("matching secret passes", func(t *testing.T) {
		handler := InternalMiddleware("cron-secret")(okHandler(nil))

		req := httptest.NewRequest(http.MethodPost, "/api/updateChat", nil)
		req.Header.Set("Authorization", "Bearer cron-secret")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong secret is 401", func(t *testing.T) {
		handler := InternalMiddleware("cron-secret")(okHandler(nil))

		req := httptest.NewRequest(http.MethodPost, "/api/updateChat", nil)
		req.Header.Set("Authorization", "Bearer guessed")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty configured secret rejects everything", func(t *testing.T) {
		handler := InternalMiddleware("")(okHandler(nil))

		req := httptest.NewRequest(http.MethodPost, "/api/updateChat", nil)
		req.Header.Set("Authorization", "Bearer ")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing header is 401", func(t *testing.T) {
		handler := InternalMiddleware("cron-secret")(okHandler(nil))

		req := httptest.NewRequest(http.MethodPost, "/api/updateChat", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
