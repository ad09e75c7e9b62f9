// Package mfa mediates multi-step authentication: short-lived tickets, TOTP
// enrollment, and recovery codes.
//
// A ticket is the middle leg of the three-legged exchange: a password leg (or
// an email verification) yields a ticket, a successful MFA response validates
// it, and a validated ticket gates a sensitive operation. Authorised tickets
// additionally complete a login.
package mfa

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// TicketTTL is how long a ticket stays redeemable after creation. The
// creation time is read from the ticket's ULID; expiry is enforced at read
// time, not by a background sweep.
const TicketTTL = 60 * time.Second

// Ticket is a short-lived token mediating a multi-step exchange.
type Ticket struct {
	ID        string `bson:"_id" json:"id"`
	AccountID string `bson:"account_id" json:"account_id"`
	Token     string `bson:"token" json:"token"`
	Validated bool   `bson:"validated" json:"validated"`
	// Authorised tickets can complete a first login without a password;
	// issued only by email verification.
	Authorised bool `bson:"authorised" json:"authorised"`
	// LastTotpCode remembers the accepted TOTP code so the same code can be
	// replayed within this ticket, and only this ticket.
	LastTotpCode string `bson:"last_totp_code,omitempty" json:"-"`
}

// CreatedAt extracts the creation time from the ticket's ULID.
func (t *Ticket) CreatedAt() time.Time {
	id, err := ulid.Parse(t.ID)
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(id.Time())
}

// Expired reports whether the ticket is older than TicketTTL.
func (t *Ticket) Expired(now time.Time) bool {
	created := t.CreatedAt()
	if created.IsZero() {
		return true
	}
	return now.Sub(created) > TicketTTL
}

// Store is the persistence contract for tickets. FindTicketByToken must treat
// tickets older than TicketTTL as absent and return store.ErrNotFound.
type Store interface {
	FindTicketByToken(ctx context.Context, token string) (*Ticket, error)
	SaveTicket(ctx context.Context, ticket *Ticket) error
	DeleteTicket(ctx context.Context, id string) error
}
