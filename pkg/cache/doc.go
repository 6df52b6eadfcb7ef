// Package cache stores SumAPI inference responses in Redis.
//
// Inference on the remote service is deterministic for a given model and
// payload, so repeating a single item request can be answered locally.
// The cache is opt-in: the client only creates a Manager when a Redis
// client is configured, and batch requests are never cached.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager with a one day lifetime
//	manager := cache.NewManager(redisClient, 24*time.Hour)
//
//	key := cache.CacheKey{
//		Endpoint: "/sentiment-analysis",
//		Payload:  []byte(`{"body":"Bu harika bir filmdi.","domain":"general"}`),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - call the service, then
//		_ = manager.Set(ctx, key, cache.NewEntry(200, body, 0))
//	}
//
// # Metrics
//
//   - sumapi_cache_hits_total{layer="redis"} - Cache hits
//   - sumapi_cache_misses_total - Cache misses
//   - sumapi_cache_size_bytes{layer="redis"} - Bytes written
//   - sumapi_cache_errors_total{operation} - Cache operation errors
package cache
