// Package redis connects to the Redis instance backing the distributed
// per-account rate limiter. Connect retries until the server is reachable;
// Healthcheck exposes a func(context.Context) error for health registries.
package redis
