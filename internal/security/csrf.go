package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/noah-isme/toko-rewards/internal/common"
)

const (
	// CSRFHeader carries the double-submit token on unsafe requests.
	CSRFHeader = "X-CSRF-Token"
	// CSRFCookie holds the browser's copy of the token.
	CSRFCookie = "csrf_token"
	// CodeCSRF is returned when a cookie-authenticated write lacks a matching token.
	CodeCSRF = "CSRF_REJECTED"
)

// CSRF implements double-submit protection for cookie sessions. Requests
// with a bearer token are not exposed to ambient cookies and pass through.
type CSRF struct {
	Header string
	Cookie string
	Secure bool
}

func (c CSRF) names() (header, cookie string) {
	header, cookie = strings.TrimSpace(c.Header), strings.TrimSpace(c.Cookie)
	if header == "" {
		header = CSRFHeader
	}
	if cookie == "" {
		cookie = CSRFCookie
	}
	return header, cookie
}

// Issue sets a fresh token cookie and echoes the token so a browser client
// can send it back in the header.
func (c CSRF) Issue(w http.ResponseWriter, _ *http.Request) {
	_, cookieName := c.names()
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "could not issue csrf token", nil)
		return
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	w.Header().Set("Cache-Control", "no-store")
	common.JSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

func (c CSRF) Middleware(next http.Handler) http.Handler {
	headerName, cookieName := c.names()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		if scheme, _, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " "); ok && strings.EqualFold(scheme, "bearer") {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(headerName))
		cookie, err := r.Cookie(cookieName)
		switch {
		case token == "":
			common.JSONError(w, http.StatusForbidden, CodeCSRF, "missing csrf token", nil)
		case err != nil || cookie.Value == "":
			common.JSONError(w, http.StatusForbidden, CodeCSRF, "missing csrf cookie", nil)
		case subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1:
			common.JSONError(w, http.StatusForbidden, CodeCSRF, "invalid csrf token", nil)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
