package redis

import "errors"

// Connection errors. Connect wraps the underlying driver error with
// errors.Join so callers can branch on these with errors.Is.
var (
	ErrEmptyConnectionURL           = errors.New("empty redis connection URL")
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready within the given time period")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
)
