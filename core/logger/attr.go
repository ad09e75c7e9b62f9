// Package logger provides slog attribute helpers for the engine's log lines.
//
// Attribute helpers use the empty Attr pattern for nil safety: calls like
// log.Warn("msg", logger.Error(err)) need no explicit nil checks. Nothing here
// ever logs credentials or raw tokens.
package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// Returns empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Duration creates an attribute for a duration.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Elapsed calculates and logs the duration since the start time.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// AccountID creates an attribute for an account identifier.
func AccountID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("account_id", id)
}

// SessionID creates an attribute for a session identifier.
func SessionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("session_id", id)
}

// TicketID creates an attribute for an MFA ticket identifier.
func TicketID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("ticket_id", id)
}

// Provider creates an attribute for an SSO identity provider id.
func Provider(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("provider", id)
}

// Operation creates an attribute for a store or service operation name.
func Operation(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("operation", name)
}

// ClientIP creates an attribute for client IP addresses.
func ClientIP(ip string) slog.Attr {
	if ip == "" {
		return slog.Attr{}
	}
	return slog.String("client_ip", ip)
}
