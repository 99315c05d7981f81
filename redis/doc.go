// Package redis provides the Redis client used by the state cache and the
// trace-log sink. It wraps go-redis with workloadops logging, configuration
// conventions and component lifecycle.
//
// TypedStore layers JSON encoding and a key prefix over the client:
//
//	store := redis.NewTypedStore[cache.Entry](client, "workload:state")
//	err := store.Save(ctx, token, &entry, 30*time.Second)
//	entry, err := store.Load(ctx, token) // (nil, nil) when absent
package redis
