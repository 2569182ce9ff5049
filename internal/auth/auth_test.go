package auth_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/notdp/franxx-store-sub000/internal/auth"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "super-secret-jwt-token-with-at-least-32-characters"
	testRef    = "abcdefgh"
)

func signToken(t *testing.T, secret, sub string, exp time.Time) string {
	t.Helper()
	claims := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
			Audience:  jwt.ClaimStrings{"authenticated"},
		},
		Email: sub + "@example.com",
		Role:  "authenticated",
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func TestParseSessionCookie(t *testing.T) {
	token := "aaa.bbb.ccc"
	object := `{"access_token":"aaa.bbb.ccc","refresh_token":"r","token_type":"bearer"}`

	tests := []struct {
		name  string
		value string
	}{
		{"bare jwt", token},
		{"session object", object},
		{"url encoded object", url.QueryEscape(object)},
		{"legacy array", `["aaa.bbb.ccc","refresh",null,null,null]`},
		{"base64 url", "base64-" + base64.RawURLEncoding.EncodeToString([]byte(object))},
		{"base64 std padded", "base64-" + base64.StdEncoding.EncodeToString([]byte(object))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.ParseSessionCookie(tt.value)
			require.NoError(t, err)
			assert.Equal(t, token, got)
		})
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := auth.ParseSessionCookie("not-a-session")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
	t.Run("object without token", func(t *testing.T) {
		_, err := auth.ParseSessionCookie(`{"refresh_token":"r"}`)
		assert.ErrorIs(t, err, auth.ErrNoToken)
	})
}

func TestTokenFromCookies_Chunked(t *testing.T) {
	value := "base64-" + base64.RawURLEncoding.EncodeToString([]byte(`{"access_token":"aaa.bbb.ccc"}`))
	half := len(value) / 2

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: auth.SessionCookieName(testRef) + ".0", Value: value[:half]})
	r.AddCookie(&http.Cookie{Name: auth.SessionCookieName(testRef) + ".1", Value: value[half:]})

	got, err := auth.TokenFromCookies(r, testRef)
	require.NoError(t, err)
	assert.Equal(t, "aaa.bbb.ccc", got)

	t.Run("discovers project ref", func(t *testing.T) {
		got, err := auth.TokenFromCookies(r, "")
		require.NoError(t, err)
		assert.Equal(t, "aaa.bbb.ccc", got)
	})

	t.Run("no cookie", func(t *testing.T) {
		_, err := auth.TokenFromCookies(httptest.NewRequest(http.MethodGet, "/", nil), testRef)
		assert.ErrorIs(t, err, auth.ErrNoToken)
	})
}

func TestExtractTokenFromRequest_PrefersBearer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer header.token.value")
	r.AddCookie(&http.Cookie{Name: auth.SessionCookieName(testRef), Value: "cookie.token.value"})

	got, err := auth.ExtractTokenFromRequest(r, testRef)
	require.NoError(t, err)
	assert.Equal(t, "header.token.value", got)

	r.Header.Set("Authorization", "Token abc")
	_, err = auth.ExtractTokenFromRequest(r, testRef)
	assert.Error(t, err)
}

func TestHS256Verifier(t *testing.T) {
	v := &auth.HS256Verifier{Secret: []byte(testSecret)}
	ctx := context.Background()

	claims, err := v.Verify(ctx, signToken(t, testSecret, "user-1", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "user-1@example.com", claims.Email)

	_, err = v.Verify(ctx, signToken(t, "another-secret-another-secret-another", "user-1", time.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = v.Verify(ctx, signToken(t, testSecret, "user-1", time.Now().Add(-time.Minute)))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestUnverifiedVerifier_StillChecksExpiry(t *testing.T) {
	v := &auth.UnverifiedVerifier{}
	ctx := context.Background()

	claims, err := v.Verify(ctx, signToken(t, "whatever-secret-whatever-secret-1234", "user-2", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.Subject)

	_, err = v.Verify(ctx, signToken(t, testSecret, "user-2", time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

type staticRoles map[string]string

func (s staticRoles) GetUserRole(_ context.Context, id string) (string, error) {
	if role, ok := s[id]; ok {
		return role, nil
	}
	return models.RoleUser, nil
}

func newAuthenticator(t *testing.T, roles staticRoles) (*auth.Authenticator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := logger.Nop()
	cache := auth.NewRoleCache(client, roles, time.Minute, log)
	return auth.NewAuthenticator(&auth.HS256Verifier{Secret: []byte(testSecret)}, cache, testRef, log), mr
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(auth.UserID(r.Context())))
	})
}

func TestRequireUser(t *testing.T) {
	a, _ := newAuthenticator(t, nil)
	h := a.RequireUser(echoUser())

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("cookie session", func(t *testing.T) {
		token := signToken(t, testSecret, "user-9", time.Now().Add(time.Hour))
		r := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		r.AddCookie(&http.Cookie{Name: auth.SessionCookieName(testRef), Value: url.QueryEscape(`{"access_token":"` + token + `"}`)})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-9", rec.Body.String())
	})

	t.Run("mock user", func(t *testing.T) {
		a.Mock = &auth.MockUser
		defer func() { a.Mock = nil }()

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, auth.MockUser.ID, rec.Body.String())
	})
}

func TestRequireAdmin_UsesCachedRole(t *testing.T) {
	a, mr := newAuthenticator(t, staticRoles{"admin-1": models.RoleAdmin})
	h := a.RequireUser(a.RequireAdmin(echoUser()))

	call := func(sub string) int {
		r := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
		r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, sub, time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("admin-1"))
	assert.Equal(t, http.StatusForbidden, call("user-1"))

	cached, err := mr.Get(auth.RoleKeyPrefix + "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, cached)

	// Roles are served from Redis until the entry is invalidated.
	require.NoError(t, mr.Set(auth.RoleKeyPrefix+"user-1", models.RoleAdmin))
	assert.Equal(t, http.StatusOK, call("user-1"))
	require.NoError(t, a.Roles.Invalidate(context.Background(), "user-1"))
	assert.Equal(t, http.StatusForbidden, call("user-1"))
}
