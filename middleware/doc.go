// Package middleware provides net/http glue for hosts embedding the engine:
// guards that resolve the X-Session-Token and X-MFA-Ticket headers into
// request context, and the error envelope writer that serializes the engine's
// error union with its HTTP status mapping.
//
// Basic usage:
//
//	guard := middleware.NewGuard(auth)
//
//	mux.Handle("/account", guard.RequireSession(accountHandler))
//	mux.Handle("/mfa/totp", guard.RequireValidatedTicket(totpHandler))
//
//	// inside a handler:
//	sess := middleware.SessionFromContext(r.Context())
package middleware
