package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/coopledger/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotencyReplayHeader marks a response served from the store.
	IdempotencyReplayHeader = "X-Idempotency-Replay"

	defaultIdempotencyTTL = 24 * time.Hour
)

// IdempotencyMiddleware replays the stored response for a repeated POST that
// carries the same Idempotency-Key.
type IdempotencyMiddleware struct {
	store  usecase.IdempotencyStore
	ttl    time.Duration
	logger zerolog.Logger
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware. A ttl <= 0
// uses 24h.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, ttl time.Duration, logger zerolog.Logger) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyMiddleware{store: store, ttl: ttl, logger: logger}
}

// storedResponse is what is kept under a completed key.
type storedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		exists, cached, err := m.store.CheckAndSet(r.Context(), key, nil, m.ttl)
		if err != nil {
			m.logger.Error().Err(err).Str("key", key).Msg("idempotency check failed")
			http.Error(w, "idempotency check failed", http.StatusInternalServerError)
			return
		}

		if exists && cached != nil {
			if usecase.IsIdempotencyPending(cached) {
				http.Error(w, "request with this idempotency key is in progress", http.StatusConflict)
				return
			}
			replay(w, cached)
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}

		stored := false
		defer func() {
			if !stored {
				m.release(r.Context(), key)
			}
		}()

		next.ServeHTTP(recorder, r)

		if recorder.statusCode < 200 || recorder.statusCode >= 300 {
			return
		}

		data, err := json.Marshal(storedResponse{Status: recorder.statusCode, Body: recorder.body.Bytes()})
		if err != nil {
			return
		}
		if err := m.store.Update(r.Context(), key, data, m.ttl); err != nil {
			m.logger.Warn().Err(err).Str("key", key).Msg("failed to store idempotent response")
			return
		}
		stored = true
	})
}

// release frees the key so a failed request can be retried. It must outlive
// a cancelled request context.
func (m *IdempotencyMiddleware) release(ctx context.Context, key string) {
	if err := m.store.Release(context.WithoutCancel(ctx), key); err != nil {
		m.logger.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
	}
}

func replay(w http.ResponseWriter, cached []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(IdempotencyReplayHeader, "true")

	var resp storedResponse
	if err := json.Unmarshal(cached, &resp); err != nil || resp.Status == 0 {
		w.Write(cached)
		return
	}

	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
