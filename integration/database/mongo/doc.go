// Package mongo provides the production MongoDB persistence layer for the
// authentication engine, plus client initialization with retry logic for
// cloud deployments such as MongoDB Atlas.
//
// Store implements every per-concern store contract of the engine over six
// collections: accounts, sessions, mfa_tickets, invites, sso_callbacks, and
// secrets. Normalised-email lookups and their unique index use a
// case-insensitive collation (locale en, strength 2). Token lookups enforce
// expiry at read time, so expired verification, reset, deletion, ticket, and
// callback tokens behave exactly like absent records.
//
// Basic usage:
//
//	var cfg mongo.Config
//	if err := env.Parse(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	store := mongo.NewStore(db)
//	if err := store.Migrate(ctx); err != nil {
//		log.Fatal(err)
//	}
//
//	auth, err := authifier.New(ctx, authifier.MustLoadConfig(), store)
//
// Migrate is idempotent: each migration checks for its target index before
// creating it and is safe to run on every startup.
//
// Configuration is handled through environment variables via the Config
// struct:
//
//	MONGODB_URL                 (required)
//	MONGODB_DATABASE            (default: authifier)
//	MONGODB_CONNECT_TIMEOUT     (default: 10s)
//	MONGODB_MAX_POOL_SIZE       (default: 100)
//	MONGODB_MIN_POOL_SIZE       (default: 1)
//	MONGODB_MAX_CONN_IDLE_TIME  (default: 300s)
//	MONGODB_RETRY_WRITES        (default: true)
//	MONGODB_RETRY_READS         (default: true)
//	MONGODB_RETRY_ATTEMPTS      (default: 3)
//	MONGODB_RETRY_INTERVAL      (default: 5s)
//
// Healthcheck returns a ping-based probe for readiness endpoints.
package mongo
