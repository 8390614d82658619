package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHS256RoundTrip(t *testing.T) {
	token, err := SignHS256("user-1", "provider", "test-secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseAndVerifyHS256(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "provider", claims.Role)

	_, err = ParseAndVerifyHS256(token, "wrong-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := SignHS256("user-1", "requester", "s", -time.Minute)
	require.NoError(t, err)
	_, err = ParseAndVerifyHS256(token, "s")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	var got Identity
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	// Gateway-trust mode.
	h := Middleware("")(next)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "u-7")
	req.Header.Set("X-Role", "requester")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, ok)
	assert.Equal(t, Identity{UserID: "u-7", Role: "requester"}, got)

	// Bearer mode.
	h = Middleware("secret")(next)
	token, err := SignHS256("u-8", "provider", "secret", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, ok)
	assert.Equal(t, "u-8", got.UserID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusUnauthorized, rw.Code)
}
