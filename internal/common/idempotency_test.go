package common_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-rewards/internal/common"
)

func newIdem(t *testing.T, h http.HandlerFunc) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return common.Idem{R: client, TTL: time.Minute}.Middleware(h)
}

func sendIdem(h http.Handler, user, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set(common.IdempotencyHeader, key)
	req = req.WithContext(common.WithUserID(req.Context(), user))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestIdemReplaysFirstResponsePerUser(t *testing.T) {
	calls := 0
	h := newIdem(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		common.JSON(w, http.StatusCreated, map[string]int{"order": calls})
	})

	first := sendIdem(h, "u1", "abc", `{"useGameWallet":true}`)
	require.Equal(t, http.StatusCreated, first.Code)

	again := sendIdem(h, "u1", "abc", `{"useGameWallet":true}`)
	require.Equal(t, http.StatusCreated, again.Code)
	require.Equal(t, "true", again.Header().Get(common.ReplayedHeader))
	require.Equal(t, "application/json", again.Header().Get("Content-Type"))
	require.JSONEq(t, first.Body.String(), again.Body.String())

	other := sendIdem(h, "u2", "abc", `{"useGameWallet":true}`)
	require.Equal(t, http.StatusCreated, other.Code)
	require.Empty(t, other.Header().Get(common.ReplayedHeader))
	require.Equal(t, 2, calls)
}

func TestIdemRejectsKeyReuseWithDifferentBody(t *testing.T) {
	h := newIdem(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	require.Equal(t, http.StatusCreated, sendIdem(h, "u1", "k", `{"a":1}`).Code)
	rr := sendIdem(h, "u1", "k", `{"a":2}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), common.CodeIdempotencyKeyReused)
}

func TestIdemReleasesKeyAfterServerError(t *testing.T) {
	calls := 0
	h := newIdem(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
	require.Equal(t, http.StatusServiceUnavailable, sendIdem(h, "u1", "k", "{}").Code)
	require.Equal(t, http.StatusCreated, sendIdem(h, "u1", "k", "{}").Code)
	require.Equal(t, 2, calls)
}

func TestIdemInFlightConflicts(t *testing.T) {
	var h http.Handler
	h = newIdem(t, func(w http.ResponseWriter, r *http.Request) {
		inner := sendIdem(h, "u1", "k", "{}")
		require.Equal(t, http.StatusConflict, inner.Code)
		require.Contains(t, inner.Body.String(), common.CodeIdempotencyInProgress)
		w.WriteHeader(http.StatusCreated)
	})
	require.Equal(t, http.StatusCreated, sendIdem(h, "u1", "k", "{}").Code)
}

func TestWriteErrorMapsAppError(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, common.Conflict(common.CodeCheckoutInProgress, "busy"))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.JSONEq(t, `{"error":{"code":"CHECKOUT_IN_PROGRESS","message":"busy"}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	common.WriteError(rr, http.ErrBodyNotAllowed)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
