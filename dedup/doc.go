// Package dedup coalesces concurrent identical requests into one execution.
//
// While a call for a key is in flight, every additional Execute for that key
// subscribes to the same outcome instead of running again. The shared outcome
// is dropped the moment it settles, so a later call executes anew.
package dedup
