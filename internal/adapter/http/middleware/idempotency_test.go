package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redisRepo "github.com/iho/shopledger/internal/adapter/repository/redis"
)

type fakeIdempotencyStore struct {
	reserveFn  func(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error)
	completeFn func(ctx context.Context, key string, response []byte, ttl time.Duration) error
	releaseFn  func(ctx context.Context, key string) error
}

func (f *fakeIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error) {
	if f.reserveFn != nil {
		return f.reserveFn(ctx, key, ttl)
	}
	return true, nil, nil
}

func (f *fakeIdempotencyStore) Complete(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if f.completeFn != nil {
		return f.completeFn(ctx, key, response, ttl)
	}
	return nil
}

func (f *fakeIdempotencyStore) Release(ctx context.Context, key string) error {
	if f.releaseFn != nil {
		return f.releaseFn(ctx, key)
	}
	return nil
}

func newRedisIdempotencyStore(t *testing.T) *redisRepo.IdempotencyStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return redisRepo.NewIdempotencyStore(client)
}

func postLoan(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/loans", bytes.NewBufferString(`{}`))
	req.Header.Set(IdempotencyKeyHeader, key)
	return req
}

func TestIdempotencyMiddleware_StoreErrorRejectsRequest(t *testing.T) {
	var called bool
	store := &fakeIdempotencyStore{
		reserveFn: func(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error) {
			return false, nil, context.DeadlineExceeded
		},
	}
	mw := NewIdempotencyMiddleware(store)

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rr, postLoan("key-err"))

	if called {
		t.Fatalf("handler should not be called when store errors")
	}

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestIdempotencyMiddleware_ReleasesKeyOnFailure(t *testing.T) {
	var completed, released bool
	store := &fakeIdempotencyStore{
		completeFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) error {
			completed = true
			return nil
		},
		releaseFn: func(ctx context.Context, key string) error {
			released = true
			return nil
		},
	}
	mw := NewIdempotencyMiddleware(store)

	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})).ServeHTTP(httptest.NewRecorder(), postLoan("key-fail"))

	if completed {
		t.Fatalf("expected error responses not to be cached")
	}
	if !released {
		t.Fatalf("expected the claim to be released after a failed request")
	}
}

func TestIdempotencyMiddleware_ReleasesKeyOnPanic(t *testing.T) {
	var released bool
	store := &fakeIdempotencyStore{
		releaseFn: func(ctx context.Context, key string) error {
			released = true
			return nil
		},
	}
	mw := NewIdempotencyMiddleware(store)

	func() {
		defer func() { _ = recover() }()
		mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})).ServeHTTP(httptest.NewRecorder(), postLoan("key-panic"))
	}()

	if !released {
		t.Fatalf("expected the claim to be released after a panic")
	}
}

func TestIdempotencyMiddleware_SkipsNonMutatingRequests(t *testing.T) {
	store := &fakeIdempotencyStore{
		reserveFn: func(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error) {
			t.Fatalf("GET must not touch the store")
			return false, nil, nil
		},
	}
	mw := NewIdempotencyMiddleware(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/shops", nil)
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

func TestIdempotencyMiddleware_ReturnsCachedResponse(t *testing.T) {
	store := &fakeIdempotencyStore{
		reserveFn: func(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error) {
			return false, []byte(`{"status":201,"body":{"cached":true}}`), nil
		},
	}
	mw := NewIdempotencyMiddleware(store)

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be called when cached response exists")
	})).ServeHTTP(rr, postLoan("key-123"))

	if rr.Header().Get("X-Idempotency-Replay") != "true" {
		t.Fatalf("expected X-Idempotency-Replay header to be set")
	}

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected replayed status 201, got %d", rr.Code)
	}

	if got := rr.Body.String(); got != `{"cached":true}` {
		t.Fatalf("unexpected cached body: %s", got)
	}
}

func TestIdempotencyMiddleware_StoresSuccessfulResponse(t *testing.T) {
	var (
		updatedBody []byte
		lockTTL     time.Duration
		storeTTL    time.Duration
	)
	store := &fakeIdempotencyStore{
		reserveFn: func(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error) {
			lockTTL = ttl
			return true, nil, nil
		},
		completeFn: func(ctx context.Context, key string, response []byte, ttl time.Duration) error {
			updatedBody = append([]byte(nil), response...)
			storeTTL = ttl
			return nil
		},
		releaseFn: func(ctx context.Context, key string) error {
			t.Fatalf("a completed request must not release its key")
			return nil
		},
	}
	mw := NewIdempotencyMiddleware(store).WithTTL(2 * time.Hour)

	rr := httptest.NewRecorder()
	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})).ServeHTTP(rr, postLoan("key-456"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	if string(updatedBody) != `{"status":201,"body":{"ok":true}}` {
		t.Fatalf("expected cached body to be stored, got %s", string(updatedBody))
	}
	if lockTTL != time.Minute || storeTTL != 2*time.Hour {
		t.Fatalf("unexpected ttls: lock=%s store=%s", lockTTL, storeTTL)
	}
}

func TestIdempotencyMiddleware_ScopesKeyByEndpoint(t *testing.T) {
	var keys []string
	store := &fakeIdempotencyStore{
		reserveFn: func(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error) {
			keys = append(keys, key)
			return true, nil, nil
		},
	}
	mw := NewIdempotencyMiddleware(store).WithTTL(time.Minute)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/api/v1/loans", "/api/v1/payments"} {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`{}`))
		req.Header.Set(IdempotencyKeyHeader, "same-key")
		mw.Wrap(next).ServeHTTP(httptest.NewRecorder(), req)
	}

	if len(keys) != 2 || keys[0] == keys[1] {
		t.Fatalf("expected distinct scoped keys, got %v", keys)
	}
}

func TestIdempotencyMiddleware_InFlightKeyConflicts(t *testing.T) {
	store := &fakeIdempotencyStore{
		reserveFn: func(ctx context.Context, key string, ttl time.Duration) (bool, []byte, error) {
			return false, nil, nil
		},
	}
	mw := NewIdempotencyMiddleware(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/loans/loan-1", nil)
	req.Header.Set(IdempotencyKeyHeader, "key-789")
	rr := httptest.NewRecorder()

	mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run while the key is in flight")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestIdempotencyMiddleware_DuplicateDuringExecutionRunsHandlerOnce(t *testing.T) {
	mw := NewIdempotencyMiddleware(newRedisIdempotencyStore(t))

	var executions atomic.Int32
	entered := make(chan struct{})
	proceed := make(chan struct{})
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if executions.Add(1) == 1 {
			close(entered)
			<-proceed
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"loan-1"}`))
	}))

	first := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(first, postLoan("dup-key"))
	}()
	<-entered

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postLoan("dup-key"))
	if second.Code != http.StatusConflict {
		t.Fatalf("expected duplicate to get 409 while in flight, got %d", second.Code)
	}

	close(proceed)
	<-done
	if first.Code != http.StatusCreated {
		t.Fatalf("expected first request to succeed, got %d", first.Code)
	}

	third := httptest.NewRecorder()
	handler.ServeHTTP(third, postLoan("dup-key"))
	if third.Code != http.StatusCreated || third.Header().Get("X-Idempotency-Replay") != "true" {
		t.Fatalf("expected replayed 201, got %d", third.Code)
	}
	if third.Body.String() != `{"id":"loan-1"}` {
		t.Fatalf("unexpected replay body %s", third.Body.String())
	}

	if got := executions.Load(); got != 1 {
		t.Fatalf("expected handler to run once, ran %d times", got)
	}
}

func TestIdempotencyMiddleware_FailedRequestCanBeRetried(t *testing.T) {
	mw := NewIdempotencyMiddleware(newRedisIdempotencyStore(t))

	var executions atomic.Int32
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if executions.Add(1) == 1 {
			writeJSONError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postLoan("retry-key"))
	if first.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postLoan("retry-key"))
	if second.Code != http.StatusCreated {
		t.Fatalf("expected retry to run and succeed, got %d", second.Code)
	}
	if got := executions.Load(); got != 2 {
		t.Fatalf("expected two executions, got %d", got)
	}
}
