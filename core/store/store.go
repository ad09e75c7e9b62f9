// Package store defines the sentinel errors shared by every persistence
// implementation. Each service declares its own narrow store interface next to
// its models; implementations (Mongo, in-memory) satisfy them all and signal
// failures with the sentinels below so services can translate uniformly.
package store

import "errors"

var (
	// ErrNotFound is returned when a record does not exist, or when a token
	// lookup misses because the token has expired. Read-time expiry keeps
	// expired tokens indistinguishable from absent ones.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned when an insert or update violates a
	// uniqueness constraint (normalised email, session token, ticket token).
	ErrDuplicateKey = errors.New("duplicate key")
)
