package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-rewards/internal/auth"
	"github.com/noah-isme/toko-rewards/internal/common"
)

const secret = "test-secret"

func sign(t *testing.T, key []byte, alg jwa.SignatureAlgorithm, subject string, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewBuilder().
		Issuer("toko").
		Subject(subject).
		IssuedAt(time.Now()).
		Expiration(exp).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(alg, key))
	require.NoError(t, err)
	return string(signed)
}

func protected(t *testing.T) http.Handler {
	t.Helper()
	verifier, err := auth.NewVerifier(secret, "toko")
	require.NoError(t, err)
	mw := auth.Middleware{Tokens: verifier, AccessCookie: "access_token"}
	return mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := common.UserID(r.Context())
		_, _ = w.Write([]byte(id))
	}))
}

func TestRequireAuthAcceptsBearerAndCookie(t *testing.T) {
	h := protected(t)
	token := sign(t, []byte(secret), jwa.HS256, "user-42", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-42", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthRejectsBadTokens(t *testing.T) {
	h := protected(t)
	cases := map[string]string{
		"missing":      "",
		"wrong secret": "Bearer " + sign(t, []byte("other"), jwa.HS256, "u", time.Now().Add(time.Hour)),
		"wrong alg":    "Bearer " + sign(t, []byte(secret), jwa.HS512, "u", time.Now().Add(time.Hour)),
		"expired":      "Bearer " + sign(t, []byte(secret), jwa.HS256, "u", time.Now().Add(-time.Hour)),
		"garbage":      "Bearer not.a.token",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := auth.NewVerifier(" ", "toko")
	require.Error(t, err)
}

func TestRequireAuthChallenges(t *testing.T) {
	rec := httptest.NewRecorder()
	protected(t).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
	require.Contains(t, rec.Body.String(), auth.CodeUnauthorized)
}

func TestAuthenticateIsOptional(t *testing.T) {
	verifier, err := auth.NewVerifier(secret, "toko")
	require.NoError(t, err)
	h := auth.Middleware{Tokens: verifier}.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := common.UserID(r.Context())
		if ok {
			w.WriteHeader(http.StatusAccepted)
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+sign(t, []byte(secret), jwa.HS256, "u7", time.Now().Add(time.Minute)))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
}
