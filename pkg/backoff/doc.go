// Package backoff provides retry delay strategies for network-bound work.
//
// The publisher's retry policy consumes a Strategy to compute the next
// scheduled time for a failed publish attempt. Exponential with jitter is
// the production default; Linear and Fixed exist for tests and for callers
// that need predictable delays.
package backoff
