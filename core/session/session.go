// Package session manages authenticated bearer sessions: creation on login,
// logout, cross-device revocation, and friendly-name editing.
package session

import (
	"context"
	"time"
)

// Session binds a client device to an account via a bearer token.
type Session struct {
	ID       string    `bson:"_id" json:"_id"`
	UserID   string    `bson:"user_id" json:"user_id"`
	Token    string    `bson:"token" json:"token"`
	Name     string    `bson:"name" json:"name"`
	LastSeen time.Time `bson:"last_seen" json:"last_seen"`
	Origin   string    `bson:"origin,omitempty" json:"origin,omitempty"`

	// Subscription is the web-push subscription, if the device registered one.
	Subscription *WebPushSubscription `bson:"subscription,omitempty" json:"-"`
}

// WebPushSubscription holds the endpoint and keys for push notifications.
type WebPushSubscription struct {
	Endpoint string `bson:"endpoint" json:"endpoint"`
	P256dh   string `bson:"p256dh" json:"p256dh"`
	Auth     string `bson:"auth" json:"auth"`
}

// Store is the persistence contract for sessions. Tokens are globally unique;
// inserts violating that fail with store.ErrDuplicateKey.
type Store interface {
	FindSession(ctx context.Context, id string) (*Session, error)
	FindSessionByToken(ctx context.Context, token string) (*Session, error)
	FindSessions(ctx context.Context, userID string) ([]Session, error)
	// FindSessionsWithSubscription returns only sessions that hold a push
	// subscription and belong to one of the given users.
	FindSessionsWithSubscription(ctx context.Context, userIDs []string) ([]Session, error)
	SaveSession(ctx context.Context, session *Session) error
	DeleteSession(ctx context.Context, id string) error
	// DeleteAllSessions removes every session of the user; except, when
	// non-empty, names a session id to keep.
	DeleteAllSessions(ctx context.Context, userID string, except string) error
}
