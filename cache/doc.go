// Package cache is the Redis-backed workload state cache used by the router.
//
// Entries are JSON documents keyed by identity token and carry their own
// expiry, so an entry the store still holds past ExpiresAt reads as a miss.
// The cache is advisory: with Redis down every Get misses and writes are
// dropped, and the router falls through to the backend.
package cache
