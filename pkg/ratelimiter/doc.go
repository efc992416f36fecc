// Package ratelimiter provides token bucket rate limiting with pluggable
// storage backends.
//
// The scheduler sweep uses a Bucket keyed on "platform:account" to respect
// each destination account's publish rate independently: one slow or
// rate-limited account never consumes another account's budget.
//
//	config := ratelimiter.Config{
//		Capacity:       10,          // burst limit per account
//		RefillRate:     1,           // tokens added per interval
//		RefillInterval: time.Minute,
//	}
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimiter.NewBucket(store, config)
//	if err != nil {
//		return err
//	}
//
//	result, err := limiter.Allow(ctx, "instagram:acct-42")
//	if err != nil {
//		return err
//	}
//	if !result.Allowed() {
//		// skip this tick, retry after result.RetryAfter()
//	}
//
// MemoryStore serves a single process; RedisStore shares one bucket per key
// across all scheduler processes, which matters when several sweepers run for
// high availability.
package ratelimiter
