package sso

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// CallbackTTL is how long a callback stays redeemable. The creation time is
// read from the callback's ULID; expiry is enforced at read time.
const CallbackTTL = 10 * time.Minute

// Callback records one in-flight authorization: the id doubles as the OAuth
// state value. Created on authorize, destroyed on redemption or expiry.
type Callback struct {
	ID          string `bson:"_id" json:"id"`
	IdPID       string `bson:"idp_id" json:"idp_id"`
	RedirectURI string `bson:"redirect_uri" json:"redirect_uri"`
	// Nonce is set only for discoverable providers and bound into the
	// ID token.
	Nonce string `bson:"nonce,omitempty" json:"-"`
	// CodeVerifier is the PKCE verifier, when the provider uses PKCE.
	CodeVerifier string `bson:"code_verifier,omitempty" json:"-"`
}

// CreatedAt extracts the creation time from the callback's ULID.
func (c *Callback) CreatedAt() time.Time {
	id, err := ulid.Parse(c.ID)
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(id.Time())
}

// Expired reports whether the callback is older than CallbackTTL.
func (c *Callback) Expired(now time.Time) bool {
	created := c.CreatedAt()
	if created.IsZero() {
		return true
	}
	return now.Sub(created) > CallbackTTL
}

// Store is the persistence contract for callbacks. FindCallback must treat
// callbacks older than CallbackTTL as absent and return store.ErrNotFound.
type Store interface {
	FindCallback(ctx context.Context, id string) (*Callback, error)
	SaveCallback(ctx context.Context, callback *Callback) error
	DeleteCallback(ctx context.Context, id string) error
}
