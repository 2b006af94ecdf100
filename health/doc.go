// Package health reports the saturation of the toolkit primitives.
//
// A Checker inspects one component and returns a Result with a Status of
// Healthy, Degraded, or Unhealthy. Built-in checkers cover the request
// queue backlog, cache fill level, and idempotency store fill level,
// each classified against configurable warning and critical thresholds.
//
//	agg := health.NewAggregator(health.Config{})
//	agg.Register(health.NewQueueChecker(q, health.Thresholds{}))
//	agg.Register(health.NewCacheChecker(c, health.Thresholds{}))
//
//	results := agg.CheckAll(ctx)
//	if agg.OverallStatus(results) != health.StatusHealthy {
//	    // shed load or surface the degradation to callers
//	}
//
// The Aggregator runs registered checks in parallel under a shared
// timeout, and can itself be exposed as a single composite Checker.
package health
