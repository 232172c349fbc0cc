package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/coopledger/internal/usecase"
)

type fakeIdempotencyStore struct {
	checkAndSetFn func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	updateFn      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
	released      []string
}

func (f *fakeIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if f.checkAndSetFn != nil {
		return f.checkAndSetFn(ctx, key, response, ttl)
	}
	return false, nil, nil
}

func (f *fakeIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, key, response, ttl)
	}
	return nil
}

func (f *fakeIdempotencyStore) Release(ctx context.Context, key string) error {
	f.released = append(f.released, key)
	return nil
}

func newIdempotencyRequest(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", bytes.NewBufferString(`{}`))
	req.Header.Set(IdempotencyKeyHeader, key)
	return req
}

func TestIdempotencyMiddleware_StoreErrorFailsRequest(t *testing.T) {
	var called bool
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
			return false, nil, context.DeadlineExceeded
		},
	}
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, newIdempotencyRequest("key-err"))

	if called {
		t.Fatalf("handler should not be called when store errors")
	}

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_ReleasesKeyOnFailure(t *testing.T) {
	var updated bool
	store := &fakeIdempotencyStore{
		updateFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) error {
			updated = true
			return nil
		},
	}
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})).ServeHTTP(rr, newIdempotencyRequest("key-fail"))

	if updated {
		t.Fatalf("expected error responses not to be cached")
	}
	if len(store.released) != 1 || store.released[0] != "key-fail" {
		t.Fatalf("expected key to be released, got %v", store.released)
	}
}

func TestIdempotencyMiddleware_ReleasesKeyOnPanic(t *testing.T) {
	store := &fakeIdempotencyStore{}
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	func() {
		defer func() { _ = recover() }()
		mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})).ServeHTTP(httptest.NewRecorder(), newIdempotencyRequest("key-panic"))
	}()

	if len(store.released) != 1 {
		t.Fatalf("expected key to be released after panic, got %v", store.released)
	}
}

func TestIdempotencyMiddleware_SkipsNonMutatingRequests(t *testing.T) {
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
			t.Fatalf("store should not be consulted for GET")
			return false, nil, nil
		},
	}
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/loans/loan-1", nil)
	req.Header.Set(IdempotencyKeyHeader, "key-get")
	rr := httptest.NewRecorder()

	called := false
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, req)

	if !called {
		t.Fatalf("expected next handler to be called")
	}
}

func TestIdempotencyMiddleware_ReplaysStoredResponse(t *testing.T) {
	stored, _ := json.Marshal(storedResponse{Status: http.StatusCreated, Body: []byte(`{"id":"loan-1"}`)})
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
			return true, stored, nil
		},
	}
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be called when a stored response exists")
	})).ServeHTTP(rr, newIdempotencyRequest("key-123"))

	if rr.Header().Get(IdempotencyReplayHeader) != "true" {
		t.Fatalf("expected %s header to be set", IdempotencyReplayHeader)
	}
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected original status 201, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != `{"id":"loan-1"}` {
		t.Fatalf("unexpected replayed body: %s", got)
	}
}

func TestIdempotencyMiddleware_InFlightDuplicateConflicts(t *testing.T) {
	store := &fakeIdempotencyStore{
		checkAndSetFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
			return true, []byte(usecase.IdempotencyPendingMarker), nil
		},
	}
	mw := NewIdempotencyMiddleware(store, time.Minute, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run while the first request is in flight")
	})).ServeHTTP(rr, newIdempotencyRequest("key-dup"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if len(store.released) != 0 {
		t.Fatalf("in-flight key must not be released by the duplicate")
	}
}

func TestIdempotencyMiddleware_StoresSuccessfulResponse(t *testing.T) {
	var updated []byte
	var gotTTL time.Duration
	store := &fakeIdempotencyStore{
		updateFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) error {
			updated = append([]byte(nil), response...)
			gotTTL = ttl
			return nil
		},
	}
	mw := NewIdempotencyMiddleware(store, 0, zerolog.Nop())

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})).ServeHTTP(rr, newIdempotencyRequest("key-456"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}
	if gotTTL != defaultIdempotencyTTL {
		t.Fatalf("expected default ttl, got %v", gotTTL)
	}

	var resp storedResponse
	if err := json.Unmarshal(updated, &resp); err != nil {
		t.Fatalf("stored value is not a stored response: %v", err)
	}
	if resp.Status != http.StatusCreated || string(resp.Body) != `{"ok":true}` {
		t.Fatalf("unexpected stored response %+v", resp)
	}
	if len(store.released) != 0 {
		t.Fatalf("stored key must not be released")
	}
}
