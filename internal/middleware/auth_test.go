package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubValidator struct {
	userID int
	err    error
}

func (s stubValidator) Validate(ctx context.Context, accessToken string) (int, error) {
	return s.userID, s.err
}

func TestAccessTokenAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := r.Context().Value("userID").(int)
		assert.True(t, ok)
		assert.Equal(t, 42, userID)
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid bearer token passes through with user ID", func(t *testing.T) {
		handler := AccessTokenAuth(stubValidator{userID: 42})(next)
		r := httptest.NewRequest("GET", "/api/v1/transactions", nil)
		r.Header.Set("Authorization", "Bearer some-access-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		handler := AccessTokenAuth(stubValidator{userID: 42})(next)
		r := httptest.NewRequest("GET", "/api/v1/transactions", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		handler := AccessTokenAuth(stubValidator{userID: 42})(next)
		r := httptest.NewRequest("GET", "/api/v1/transactions", nil)
		r.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		handler := AccessTokenAuth(stubValidator{err: errors.New("record not found")})(next)
		r := httptest.NewRequest("GET", "/api/v1/transactions", nil)
		r.Header.Set("Authorization", "Bearer forged")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
