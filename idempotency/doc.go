// Package idempotency tracks operation outcomes by caller-supplied key so a
// logical operation is not performed more than once within its validity
// period.
//
// Each key moves through a small state machine: pending, then completed or
// failed (both terminal). A key with any live entry, terminal or not, blocks
// Start until the entry expires or is removed. Expiry is lazy, on access and
// in PruneExpired; there is no background timer.
package idempotency
