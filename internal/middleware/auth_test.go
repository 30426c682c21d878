// ===============================
// FILE: internal/middleware/auth_test.go
// ===============================

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wavehub/internal/config"
	"wavehub/internal/contextutils"
	"wavehub/internal/response"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-not-for-production"

func newTestAuthenticator() *Authenticator {
	logger := zap.NewNop()
	return NewAuthenticator(config.AuthConfig{
		JWTSecret: testSecret,
		JWTIssuer: "https://issuer.example.com",
		JWTLeeway: time.Minute,
	}, response.NewWriter(logger), logger)
}

func mintToken(t *testing.T, secret string, mutate func(*jwt.RegisteredClaims)) string {
	t.Helper()
	claims := &jwt.RegisteredClaims{
		Subject:   "idp|u1",
		Issuer:    "https://issuer.example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	if mutate != nil {
		mutate(claims)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

// identityEcho reports the identity the middleware attached, if any.
func identityEcho(captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity := contextutils.GetIdentity(r.Context()); identity != nil {
			*captured = identity.ID
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequiredAcceptsValidToken(t *testing.T) {
	auth := newTestAuthenticator()
	var seen string
	handler := auth.Required()(identityEcho(&seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, nil))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idp|u1", seen)
}

func TestRequiredRejectsMissingToken(t *testing.T) {
	auth := newTestAuthenticator()
	handler := auth.Required()(identityEcho(new(string)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequiredRejectsExpiredToken(t *testing.T) {
	auth := newTestAuthenticator()
	handler := auth.Required()(identityEcho(new(string)))

	token := mintToken(t, testSecret, func(c *jwt.RegisteredClaims) {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequiredRejectsWrongSecret(t *testing.T) {
	auth := newTestAuthenticator()
	handler := auth.Required()(identityEcho(new(string)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "other-secret", nil))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequiredRejectsWrongIssuer(t *testing.T) {
	auth := newTestAuthenticator()
	handler := auth.Required()(identityEcho(new(string)))

	token := mintToken(t, testSecret, func(c *jwt.RegisteredClaims) {
		c.Issuer = "https://rogue.example.com"
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequiredRejectsUnsignedToken(t *testing.T) {
	auth := newTestAuthenticator()
	handler := auth.Required()(identityEcho(new(string)))

	claims := &jwt.RegisteredClaims{
		Subject:   "idp|u1",
		Issuer:    "https://issuer.example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequiredRejectsTokenWithoutSubject(t *testing.T) {
	auth := newTestAuthenticator()
	handler := auth.Required()(identityEcho(new(string)))

	token := mintToken(t, testSecret, func(c *jwt.RegisteredClaims) {
		c.Subject = ""
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalPassesAnonymous(t *testing.T) {
	auth := newTestAuthenticator()
	var seen string
	handler := auth.Optional()(identityEcho(&seen))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, seen, "no identity without a token")
}

func TestOptionalStillRejectsBadToken(t *testing.T) {
	auth := newTestAuthenticator()
	handler := auth.Optional()(identityEcho(new(string)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code, "a bad token is never downgraded to anonymous")
}

func TestWebsocketUpgradeAcceptsQueryToken(t *testing.T) {
	auth := newTestAuthenticator()
	var seen string
	handler := auth.Required()(identityEcho(&seen))

	req := httptest.NewRequest(http.MethodGet, "/?token="+mintToken(t, testSecret, nil), nil)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idp|u1", seen)
}

func TestQueryTokenIgnoredWithoutUpgrade(t *testing.T) {
	auth := newTestAuthenticator()
	handler := auth.Required()(identityEcho(new(string)))

	req := httptest.NewRequest(http.MethodGet, "/?token="+mintToken(t, testSecret, nil), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code, "query tokens only count on upgrade requests")
}

func TestBearerTokenParsing(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		assert.Equal(t, tc.want, bearerToken(req), tc.header)
	}
}
