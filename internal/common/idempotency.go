package common

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// IdempotencyHeader names the client-chosen request key.
	IdempotencyHeader = "Idempotency-Key"
	// ReplayedHeader marks a response served from the idempotency store.
	ReplayedHeader = "Idempotent-Replayed"

	CodeIdempotencyInProgress = "IDEMPOTENCY_IN_PROGRESS"
	CodeIdempotencyKeyReused  = "IDEMPOTENCY_KEY_REUSED"
)

// idemRecord is stored under the key: first as a pending marker, then with
// the response once the handler finishes.
type idemRecord struct {
	Fingerprint string `json:"fp"`
	Done        bool   `json:"done"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idem makes writes safe to retry. Keys are scoped to the authenticated
// user. A repeated key replays the first response; the same key with a
// different body is rejected. Server errors release the key so the client
// may try again.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return 24 * time.Hour
	}
	return i.TTL
}

func idemKey(userID, key string) string {
	sum := sha256.Sum256([]byte(userID + "|" + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

func fingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	_, _ = io.WriteString(h, r.Method+" "+r.URL.Path+"\n")
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(IdempotencyHeader)
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			JSONError(w, http.StatusBadRequest, CodeValidation, "invalid request body", nil)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		userID, _ := UserID(ctx)
		key := idemKey(userID, header)
		fp := fingerprint(r, body)
		pending, _ := json.Marshal(idemRecord{Fingerprint: fp})

		claimed, err := i.R.SetNX(ctx, key, pending, i.ttl()).Result()
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("idempotency_store_failed")
			JSONError(w, http.StatusInternalServerError, CodeInternal, "idempotency store error", nil)
			return
		}
		if !claimed {
			i.replay(w, r, key, fp)
			return
		}

		capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		stored := false
		defer func() {
			if !stored {
				_ = i.R.Del(context.WithoutCancel(ctx), key).Err()
			}
		}()
		next.ServeHTTP(capture, r)

		if capture.status >= http.StatusInternalServerError {
			return
		}
		rec, _ := json.Marshal(idemRecord{
			Fingerprint: fp,
			Done:        true,
			Status:      capture.status,
			ContentType: capture.Header().Get("Content-Type"),
			Body:        capture.body.Bytes(),
		})
		if err := i.R.Set(context.WithoutCancel(ctx), key, rec, i.ttl()).Err(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("idempotency_record_failed")
			return
		}
		stored = true
	})
}

func (i Idem) replay(w http.ResponseWriter, r *http.Request, key, fp string) {
	data, err := i.R.Get(r.Context(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		// released between SetNX and Get; the first attempt failed
		JSONError(w, http.StatusConflict, CodeIdempotencyInProgress, "request is being retried, try again", nil)
		return
	}
	var rec idemRecord
	if err == nil {
		err = json.Unmarshal(data, &rec)
	}
	if err != nil {
		JSONError(w, http.StatusInternalServerError, CodeInternal, "idempotency store error", nil)
		return
	}
	switch {
	case rec.Fingerprint != fp:
		JSONError(w, http.StatusUnprocessableEntity, CodeIdempotencyKeyReused, "idempotency key was used with a different request", nil)
	case !rec.Done:
		JSONError(w, http.StatusConflict, CodeIdempotencyInProgress, "original request still in progress", nil)
	default:
		if rec.ContentType != "" {
			w.Header().Set("Content-Type", rec.ContentType)
		}
		w.Header().Set(ReplayedHeader, "true")
		w.WriteHeader(rec.Status)
		_, _ = w.Write(rec.Body)
	}
}

// captureWriter tees the response so it can be stored for replay.
type captureWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (c *captureWriter) WriteHeader(status int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}
