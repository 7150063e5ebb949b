package security

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSRFMiddleware(t *testing.T) {
	cases := []struct {
		name   string
		method string
		header string
		cookie string
		bearer bool
		code   int
	}{
		{"safe method", http.MethodGet, "", "", false, http.StatusOK},
		{"bearer skips", http.MethodPost, "", "", true, http.StatusOK},
		{"missing token", http.MethodPost, "", "tok", false, http.StatusForbidden},
		{"missing cookie", http.MethodPost, "tok", "", false, http.StatusForbidden},
		{"mismatch", http.MethodPost, "one", "two", false, http.StatusForbidden},
		{"match", http.MethodPost, "tok", "tok", false, http.StatusOK},
	}
	handler := CSRF{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/checkout", nil)
			if tc.header != "" {
				req.Header.Set(CSRFHeader, tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CSRFCookie, Value: tc.cookie})
			}
			if tc.bearer {
				req.Header.Set("Authorization", "Bearer abc.def")
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			require.Equal(t, tc.code, rr.Code)
			if tc.code == http.StatusForbidden {
				require.Contains(t, rr.Body.String(), CodeCSRF)
			}
		})
	}
}

func TestCSRFIssueRoundTrip(t *testing.T) {
	csrf := CSRF{Secure: true}
	rr := httptest.NewRecorder()
	csrf.Issue(rr, httptest.NewRequest(http.MethodGet, "/api/v1/csrf", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, CSRFCookie, cookies[0].Name)
	require.True(t, cookies[0].Secure)
	require.Equal(t, cookies[0].Value, body["csrfToken"])

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", nil)
	req.Header.Set(CSRFHeader, body["csrfToken"])
	req.AddCookie(cookies[0])
	next := httptest.NewRecorder()
	csrf.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})).ServeHTTP(next, req)
	require.Equal(t, http.StatusCreated, next.Code)
}
