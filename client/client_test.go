package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/campaignops/relaykit/idempotency"
	"github.com/campaignops/relaykit/ratelimit"
)

func newTestClient(t *testing.T, upstream http.HandlerFunc, mutate func(*Config)) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	cfg := Config{
		BaseURL: srv.URL,
		Retry:   RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrMissingBaseURL) {
		t.Fatalf("New error = %v, want ErrMissingBaseURL", err)
	}
}

func TestClient_GetCachesResponses(t *testing.T) {
	var calls int64
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		fmt.Fprint(w, `{"contacts":[]}`)
	}, nil)

	ctx := context.Background()
	first, err := c.Get(ctx, "/contacts", map[string]any{"limit": 50})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := c.Get(ctx, "/contacts", map[string]any{"limit": 50})
	if err != nil {
		t.Fatalf("Get (cached): %v", err)
	}

	if string(first) != `{"contacts":[]}` || string(second) != string(first) {
		t.Errorf("bodies = %q / %q", first, second)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (second served from cache)", got)
	}
}

func TestClient_GetDistinctParamsNotShared(t *testing.T) {
	var calls int64
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		fmt.Fprint(w, r.URL.RawQuery)
	}, nil)

	ctx := context.Background()
	if _, err := c.Get(ctx, "/contacts", map[string]any{"limit": 50}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := c.Get(ctx, "/contacts", map[string]any{"limit": 100}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
}

func TestClient_GetCoalescesConcurrentMisses(t *testing.T) {
	var calls int64
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		<-release
		fmt.Fprint(w, "shared")
	}, nil)

	const n = 4
	var wg sync.WaitGroup
	bodies := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, err := c.Get(context.Background(), "/campaigns", nil)
			bodies[i], errs[i] = string(body), err
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && atomic.LoadInt64(&calls) == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond) // let remaining callers join the flight
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if bodies[i] != "shared" {
			t.Errorf("caller %d body = %q", i, bodies[i])
		}
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}

func TestClient_GetRateLimited(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}, func(cfg *Config) {
		cfg.Limiter = ratelimit.New(ratelimit.Config{Limit: 1, Window: time.Minute})
	})

	ctx := context.Background()
	if _, err := c.Get(ctx, "/a", nil); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	_, err := c.Get(ctx, "/b", nil)
	if !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Fatalf("second Get error = %v, want ErrRateLimited", err)
	}
	var rlErr *ratelimit.RateLimitError
	if !errors.As(err, &rlErr) || rlErr.RetryAfter <= 0 {
		t.Errorf("error = %#v, want RateLimitError with positive RetryAfter", err)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int64
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "recovered")
	}, nil)

	body, err := c.Get(context.Background(), "/flaky", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "recovered" {
		t.Errorf("body = %q", body)
	}
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var calls int64
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"no such contact"}`)
	}, nil)

	_, err := c.Get(context.Background(), "/contacts/42", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Get error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if string(apiErr.Body) != `{"error":"no such contact"}` {
		t.Errorf("Body = %q", apiErr.Body)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (404 must not retry)", got)
	}
}

func TestClient_PostIdempotentReplay(t *testing.T) {
	var calls int64
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		fmt.Fprint(w, `{"id":"c-1"}`)
	}, nil)

	ctx := context.Background()
	key := idempotency.GenerateKey()

	first, err := c.Post(ctx, "/contacts", []byte(`{"email":"a@b.c"}`), key)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	second, err := c.Post(ctx, "/contacts", []byte(`{"email":"a@b.c"}`), key)
	if err != nil {
		t.Fatalf("Post (replay): %v", err)
	}

	if string(first) != `{"id":"c-1"}` || string(second) != string(first) {
		t.Errorf("bodies = %q / %q", first, second)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (replay served from store)", got)
	}
}

func TestClient_PostDuplicateInFlight(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		fmt.Fprint(w, "done")
	}, nil)

	ctx := context.Background()
	key := idempotency.GenerateKey()

	done := make(chan error, 1)
	go func() {
		_, err := c.Post(ctx, "/contacts", nil, key)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if entry, ok := c.config.Idempotency.Check(key); ok && entry.Status == idempotency.StatusPending {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := c.Post(ctx, "/contacts", nil, key); !errors.Is(err, ErrOperationInFlight) {
		t.Fatalf("duplicate Post error = %v, want ErrOperationInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Post: %v", err)
	}
}

func TestClient_PostFailureRecorded(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}, nil)

	key := idempotency.GenerateKey()
	_, err := c.Post(context.Background(), "/contacts", []byte(`{}`), key)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Post error = %v, want *APIError", err)
	}

	entry, ok := c.config.Idempotency.Check(key)
	if !ok || entry.Status != idempotency.StatusFailed {
		t.Errorf("entry = %+v, want failed status recorded", entry)
	}
}

func TestClient_SendsBearerToken(t *testing.T) {
	var got string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		fmt.Fprint(w, "ok")
	}, func(cfg *Config) {
		cfg.Tokens = StaticToken("s3cret")
	})

	if _, err := c.Get(context.Background(), "/me", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "Bearer s3cret" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer s3cret")
	}
}

func TestClient_DeleteGeneratesKeyWhenEmpty(t *testing.T) {
	var calls int64
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		fmt.Fprint(w, "ok")
	}, nil)

	ctx := context.Background()
	if _, err := c.Delete(ctx, "/contacts/1", ""); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Delete(ctx, "/contacts/1", ""); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Generated keys are unique, so both calls reach upstream.
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
}
