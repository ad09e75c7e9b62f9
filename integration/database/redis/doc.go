// Package redis provides Redis client initialization and health checking for
// the engine's event fan-out (see integration/event/redis).
//
// Connect validates the connection URL, retries transient failures, and
// verifies connectivity with a ping before returning the client. Both
// redis:// and rediss:// (TLS) URL schemes are supported.
//
// Basic usage:
//
//	var cfg redis.Config
//	if err := env.Parse(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// Configuration environment variables:
//
//	REDIS_URL              (required)
//	REDIS_RETRY_ATTEMPTS   (default: 3)
//	REDIS_RETRY_INTERVAL   (default: 5s)
//	REDIS_CONNECT_TIMEOUT  (default: 30s)
package redis
