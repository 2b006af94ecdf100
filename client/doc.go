// Package client composes the resilience primitives into an upstream
// REST API client.
//
// Reads pass through the full stack: the sliding-window rate limiter
// first, then the response cache, then the deduplicator so identical
// concurrent misses share one upstream call, then the bounded request
// queue, and finally a retried HTTP round trip whose response fills
// the cache. Mutations skip the cache and deduplicator and are guarded
// by an idempotency key instead: a repeated key replays the recorded
// result of the first completed run, and a key still in flight is
// rejected with ErrOperationInFlight.
//
//	c, err := client.New(client.Config{
//	    BaseURL: "https://api.example.com/v3",
//	    Tokens:  client.StaticToken("secret"),
//	})
//	if err != nil {
//	    return err
//	}
//	body, err := c.Get(ctx, "/contacts", map[string]any{"limit": 50})
//
// Bearer credentials that expire can use RefreshingToken, which caches
// the token and coalesces concurrent refreshes into a single fetch.
package client
