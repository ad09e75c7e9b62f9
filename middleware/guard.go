package middleware

import (
	"context"
	"net/http"

	"github.com/authifier/authifier"
	"github.com/authifier/authifier/core/account"
	"github.com/authifier/authifier/core/autherr"
	"github.com/authifier/authifier/core/mfa"
	"github.com/authifier/authifier/core/session"
)

// Wire headers the guards resolve.
const (
	HeaderSessionToken = "X-Session-Token"
	HeaderMFATicket    = "X-MFA-Ticket"
)

type contextKey int

const (
	sessionKey contextKey = iota
	accountKey
	ticketKey
)

// SessionFromContext returns the session a guard resolved, or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

// AccountFromContext returns the account a guard resolved, or nil.
func AccountFromContext(ctx context.Context) *account.Account {
	a, _ := ctx.Value(accountKey).(*account.Account)
	return a
}

// TicketFromContext returns the MFA ticket a guard resolved, or nil.
func TicketFromContext(ctx context.Context) *mfa.Ticket {
	t, _ := ctx.Value(ticketKey).(*mfa.Ticket)
	return t
}

// Guard authenticates requests against the engine.
type Guard struct {
	auth *authifier.Auth
}

// NewGuard wraps an assembled engine.
func NewGuard(auth *authifier.Auth) *Guard {
	return &Guard{auth: auth}
}

// RequireSession resolves X-Session-Token into a session and account and
// stores both in the request context. A missing header fails with
// MissingHeaders; anything else invalid fails with InvalidSession.
func (g *Guard) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := r.Header.Get(HeaderSessionToken)
		sess, acc, err := g.auth.Authenticate(r.Context(), bearer)
		if err != nil {
			WriteError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		ctx = context.WithValue(ctx, accountKey, acc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireTicket resolves X-MFA-Ticket into a ticket and account and stores
// both in the request context. The ticket's validated flag is not checked;
// use RequireValidatedTicket to gate sensitive operations.
func (g *Guard) RequireTicket(next http.Handler) http.Handler {
	return g.requireTicket(next, false)
}

// RequireValidatedTicket is RequireTicket, additionally demanding that the
// ticket already passed an MFA challenge.
func (g *Guard) RequireValidatedTicket(next http.Handler) http.Handler {
	return g.requireTicket(next, true)
}

func (g *Guard) requireTicket(next http.Handler, validated bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := r.Header.Get(HeaderMFATicket)
		if bearer == "" {
			WriteError(w, autherr.ErrMissingHeaders)
			return
		}

		ticket, acc, err := g.auth.MFA().FindTicket(r.Context(), bearer)
		if err != nil {
			WriteError(w, err)
			return
		}
		if validated && !ticket.Validated {
			WriteError(w, autherr.ErrInvalidToken)
			return
		}

		ctx := context.WithValue(r.Context(), ticketKey, ticket)
		ctx = context.WithValue(ctx, accountKey, acc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
