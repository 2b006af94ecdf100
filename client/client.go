package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/campaignops/relaykit/cache"
	"github.com/campaignops/relaykit/dedup"
	"github.com/campaignops/relaykit/idempotency"
	"github.com/campaignops/relaykit/observe"
	"github.com/campaignops/relaykit/queue"
	"github.com/campaignops/relaykit/ratelimit"
)

const (
	// DefaultCacheTTL is how long GET responses stay cached.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultRateLimitKey buckets all requests under one sliding window
	// when no per-call key is configured.
	DefaultRateLimitKey = "api"
)

// Config controls the client composition.
type Config struct {
	// BaseURL is the upstream API root, e.g. "https://api.example.com/v3".
	// Required.
	BaseURL string

	// HTTPClient performs the actual requests. Defaults to a client
	// with a 30s timeout.
	HTTPClient *http.Client

	// Tokens supplies bearer tokens. Optional; requests go out
	// unauthenticated when nil.
	Tokens TokenProvider

	// Limiter guards outbound request rate. Defaults to a fresh
	// limiter with package defaults.
	Limiter *ratelimit.Limiter

	// Cache stores GET response bodies. Defaults to an unbounded cache.
	Cache *cache.Cache[[]byte]

	// Dedup coalesces identical concurrent GETs. Defaults to a fresh
	// deduplicator.
	Dedup *dedup.Deduplicator

	// Queue bounds upstream concurrency. Defaults to a fresh queue
	// with package defaults.
	Queue *queue.Queue

	// Idempotency tracks mutation keys. Defaults to a fresh store with
	// package defaults.
	Idempotency *idempotency.Store

	// Retry controls upstream retry behavior. Zero fields take the
	// DefaultRetryConfig values.
	Retry RetryConfig

	// CacheTTL is how long GET responses stay cached.
	// Default: DefaultCacheTTL
	CacheTTL time.Duration

	// RateLimitKey buckets requests in the limiter.
	// Default: DefaultRateLimitKey
	RateLimitKey string

	// Logger receives request lifecycle events. Defaults to a no-op
	// logger.
	Logger observe.Logger

	// Metrics records call and throttle counters. Defaults to no-op
	// metrics.
	Metrics observe.Metrics
}

func (c *Config) applyDefaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.Limiter == nil {
		c.Limiter = ratelimit.New(ratelimit.Config{})
	}
	if c.Cache == nil {
		c.Cache = cache.New[[]byte](cache.Config{})
	}
	if c.Dedup == nil {
		c.Dedup = dedup.New()
	}
	if c.Queue == nil {
		c.Queue = queue.New(queue.Config{})
	}
	if c.Idempotency == nil {
		c.Idempotency = idempotency.NewStore(idempotency.Config{})
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.RateLimitKey == "" {
		c.RateLimitKey = DefaultRateLimitKey
	}
	if c.Logger == nil {
		c.Logger = observe.NewNopLogger()
	}
	if c.Metrics == nil {
		c.Metrics = observe.NewNopMetrics()
	}
}

// Client calls the upstream REST API through the full resilience
// stack. Reads are rate limited, cached, deduplicated, and queued;
// mutations are additionally tracked by idempotency key.
type Client struct {
	config Config
	retry  *retrier
}

// New creates a client. Primitives not supplied in config are created
// with their package defaults.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	config.applyDefaults()
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config: config,
		retry:  newRetrier(config.Retry),
	}, nil
}

// Get issues a GET for path with the given query parameters. The
// response body is served from cache when possible, and identical
// concurrent misses share a single upstream call.
func (c *Client) Get(ctx context.Context, path string, params map[string]any) ([]byte, error) {
	meta := observe.CallMeta{Operation: "get", Method: http.MethodGet, Path: path}

	if err := c.config.Limiter.Check(c.config.RateLimitKey); err != nil {
		c.config.Metrics.RecordThrottle(ctx, meta, "rate_limit")
		c.config.Logger.Warn(ctx, "request rate limited",
			observe.Field{Key: "path", Value: path})
		return nil, err
	}

	key := dedup.CreateKey(http.MethodGet, path, params)
	if body, ok := c.config.Cache.Get(key); ok {
		c.config.Logger.Debug(ctx, "cache hit",
			observe.Field{Key: "path", Value: path})
		return body, nil
	}

	result, err := c.config.Dedup.Execute(ctx, key, func(ctx context.Context) (any, error) {
		body, err := c.dispatch(ctx, meta, http.MethodGet, path, params, nil)
		if err != nil {
			return nil, err
		}
		c.config.Cache.SetWithTTL(key, body, c.config.CacheTTL)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Post issues a POST guarded by the idempotency key. An empty key gets
// a generated one. A repeated key returns the recorded result of the
// first completed run, or ErrOperationInFlight while it is running.
func (c *Client) Post(ctx context.Context, path string, body []byte, idemKey string) ([]byte, error) {
	return c.mutate(ctx, http.MethodPost, path, body, idemKey)
}

// Put issues a PUT guarded by the idempotency key, with the same
// semantics as Post.
func (c *Client) Put(ctx context.Context, path string, body []byte, idemKey string) ([]byte, error) {
	return c.mutate(ctx, http.MethodPut, path, body, idemKey)
}

// Delete issues a DELETE guarded by the idempotency key, with the same
// semantics as Post.
func (c *Client) Delete(ctx context.Context, path string, idemKey string) ([]byte, error) {
	return c.mutate(ctx, http.MethodDelete, path, nil, idemKey)
}

func (c *Client) mutate(ctx context.Context, method, path string, body []byte, idemKey string) ([]byte, error) {
	meta := observe.CallMeta{Operation: "mutate", Method: method, Path: path}

	if idemKey == "" {
		idemKey = idempotency.GenerateKey()
	}

	if err := c.config.Limiter.Check(c.config.RateLimitKey); err != nil {
		c.config.Metrics.RecordThrottle(ctx, meta, "rate_limit")
		return nil, err
	}

	if !c.config.Idempotency.Start(idemKey) {
		entry, ok := c.config.Idempotency.Check(idemKey)
		if ok && entry.Status == idempotency.StatusCompleted {
			c.config.Logger.Debug(ctx, "idempotent replay",
				observe.Field{Key: "key", Value: idemKey})
			if cached, ok := entry.Result.([]byte); ok {
				return cached, nil
			}
			return nil, nil
		}
		c.config.Logger.Warn(ctx, "duplicate mutation blocked",
			observe.Field{Key: "key", Value: idemKey})
		return nil, ErrOperationInFlight
	}

	respBody, err := c.dispatch(ctx, meta, method, path, nil, body)
	if err != nil {
		c.config.Idempotency.Fail(idemKey, err)
		return nil, err
	}
	c.config.Idempotency.Complete(idemKey, respBody)
	return respBody, nil
}

// dispatch runs one upstream call through the queue and retry layers.
func (c *Client) dispatch(ctx context.Context, meta observe.CallMeta, method, path string, params map[string]any, body []byte) ([]byte, error) {
	var respBody []byte
	start := time.Now()

	err := c.config.Queue.Execute(ctx, func(ctx context.Context) error {
		return c.retry.execute(ctx, func(ctx context.Context) error {
			var err error
			respBody, err = c.do(ctx, method, path, params, body)
			return err
		})
	})

	c.config.Metrics.RecordCall(ctx, meta, time.Since(start), err)
	if err != nil {
		c.config.Logger.Error(ctx, "upstream call failed",
			observe.Field{Key: "method", Value: method},
			observe.Field{Key: "path", Value: path},
			observe.Field{Key: "error", Value: err.Error()})
		return nil, err
	}
	return respBody, nil
}

// do performs a single HTTP round trip.
func (c *Client) do(ctx context.Context, method, path string, params map[string]any, body []byte) ([]byte, error) {
	u := c.config.BaseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		q := url.Values{}
		for name, value := range params {
			q.Set(name, fmt.Sprint(value))
		}
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Tokens != nil {
		token, err := c.config.Tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       respBody,
		}
	}
	return respBody, nil
}
