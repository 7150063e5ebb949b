package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-rewards/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// TokenParser resolves an access token to a user id.
type TokenParser interface {
	ParseAccessToken(token string) (string, error)
}

// Middleware resolves the caller from a bearer header or the access cookie.
type Middleware struct {
	Tokens       TokenParser
	AccessCookie string
}

// Authenticate attaches the user id when a valid token is present and
// otherwise lets the request through anonymously.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ctx, err := m.resolve(r); err == nil {
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth answers 401 unless the request carries a valid token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := common.UserID(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		ctx, err := m.resolve(r)
		if err != nil {
			if !errors.Is(err, errNoToken) {
				zerolog.Ctx(r.Context()).Debug().Err(err).Msg("auth_rejected")
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="toko"`)
			common.JSONError(w, http.StatusUnauthorized, CodeUnauthorized, "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) resolve(r *http.Request) (context.Context, error) {
	if m.Tokens == nil {
		return nil, errors.New("auth: token parser not configured")
	}
	token := m.token(r)
	if token == "" {
		return nil, errNoToken
	}
	userID, err := m.Tokens.ParseAccessToken(token)
	if err != nil {
		return nil, err
	}
	ctx := common.WithUserID(r.Context(), userID)
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		ctx = l.With().Str("user_id", userID).Logger().WithContext(ctx)
	}
	return ctx, nil
}

func (m Middleware) token(r *http.Request) string {
	if scheme, tok, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(tok)
	}
	if m.AccessCookie == "" {
		return ""
	}
	if c, err := r.Cookie(m.AccessCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
