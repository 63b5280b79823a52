package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireRoleMissingSecret(t *testing.T) {
	mw := RequireRole("", RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/closers", nil)
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleMissingHeader(t *testing.T) {
	mw := RequireRole("secret", RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/closers", nil)
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"missing authorization header"}`, rec.Body.String())
}

func TestRequireRoleInvalidSignature(t *testing.T) {
	mw := RequireRole("secret", RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/closers", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "wrong", RoleAdmin, "admin-user"))
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleRejectsOtherRole(t *testing.T) {
	mw := RequireRole("secret", RoleAdmin)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/closers", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "secret", RoleCloser, "closer-1"))
	rec := httptest.NewRecorder()

	called := false
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleCloserToken(t *testing.T) {
	mw := RequireRole("secret", RoleCloser)
	req := httptest.NewRequest(http.MethodGet, "/api/closer/stats", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "secret", RoleCloser, "closer-1"))
	rec := httptest.NewRecorder()

	var closerID string
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := CloserIDFromContext(r.Context())
		require.True(t, ok)
		closerID = id
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "closer-1", closerID)
}

func TestRequireRoleCloserWithoutSubject(t *testing.T) {
	mw := RequireRole("secret", RoleCloser)
	req := httptest.NewRequest(http.MethodGet, "/api/closer/stats", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "secret", RoleCloser, ""))
	rec := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCloserIDFromContextIgnoresAdmin(t *testing.T) {
	ctx := ContextWithClaims(httptest.NewRequest(http.MethodGet, "/", nil).Context(), Claims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "admin-user"},
	})
	_, ok := CloserIDFromContext(ctx)
	assert.False(t, ok)
}

func signedToken(t *testing.T, secret, role, subject string) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
