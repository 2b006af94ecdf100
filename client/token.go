package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TokenProvider supplies bearer tokens for upstream requests.
type TokenProvider interface {
	// Token returns a token valid for the next request.
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider that always returns the same token.
type StaticToken string

// Token returns the fixed token.
func (t StaticToken) Token(ctx context.Context) (string, error) {
	return string(t), nil
}

// Credential is a fetched bearer token and its expiry. A zero ExpiresAt
// means the token never expires.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// RefreshFunc fetches a fresh credential from the auth endpoint.
type RefreshFunc func(ctx context.Context) (Credential, error)

// RefreshingTokenConfig configures a refreshing token provider.
type RefreshingTokenConfig struct {
	// Refresh fetches a new credential. Required.
	Refresh RefreshFunc

	// ExpiryMargin refreshes the token this long before it expires.
	// Default: 30s
	ExpiryMargin time.Duration

	// Clock overrides time.Now, used by tests.
	Clock func() time.Time
}

// RefreshingToken caches a bearer token and refreshes it before
// expiry. Concurrent refreshes are coalesced into a single upstream
// fetch, and a failed refresh falls back to the stale token while one
// is still held.
type RefreshingToken struct {
	config RefreshingTokenConfig

	mu      sync.RWMutex
	current Credential
	held    bool

	sfGroup singleflight.Group
}

var _ TokenProvider = (*RefreshingToken)(nil)

// NewRefreshingToken creates a refreshing token provider.
func NewRefreshingToken(config RefreshingTokenConfig) *RefreshingToken {
	if config.ExpiryMargin <= 0 {
		config.ExpiryMargin = 30 * time.Second
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &RefreshingToken{config: config}
}

// Token returns the cached token, refreshing it first when it is
// missing or about to expire.
func (p *RefreshingToken) Token(ctx context.Context) (string, error) {
	p.mu.RLock()
	cred, held := p.current, p.held
	p.mu.RUnlock()

	if held && p.fresh(cred) {
		return cred.Token, nil
	}

	_, err, _ := p.sfGroup.Do("refresh", func() (any, error) {
		return nil, p.refresh(ctx)
	})
	if err != nil {
		// Fall back to the stale token while one is still held.
		p.mu.RLock()
		cred, held = p.current, p.held
		p.mu.RUnlock()
		if held {
			return cred.Token, nil
		}
		return "", fmt.Errorf("%w: %w", ErrTokenUnavailable, err)
	}

	p.mu.RLock()
	cred = p.current
	p.mu.RUnlock()
	return cred.Token, nil
}

// fresh reports whether the credential is still inside its validity
// window, minus the expiry margin.
func (p *RefreshingToken) fresh(cred Credential) bool {
	if cred.ExpiresAt.IsZero() {
		return true
	}
	return p.config.Clock().Before(cred.ExpiresAt.Add(-p.config.ExpiryMargin))
}

func (p *RefreshingToken) refresh(ctx context.Context) error {
	cred, err := p.config.Refresh(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.current = cred
	p.held = true
	p.mu.Unlock()
	return nil
}

// Invalidate drops the cached token so the next request refreshes.
func (p *RefreshingToken) Invalidate() {
	p.mu.Lock()
	p.current = Credential{}
	p.held = false
	p.mu.Unlock()
}
