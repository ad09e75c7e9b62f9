package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/authifier/authifier/core/autherr"
	"github.com/authifier/authifier/core/event"
	"github.com/authifier/authifier/core/logger"
	"github.com/authifier/authifier/core/store"
	"github.com/authifier/authifier/pkg/token"
)

// sessionTokenLength is the size of the bearer token in characters.
const sessionTokenLength = 64

// Service drives the session lifecycle.
type Service struct {
	store  Store
	events event.Emitter
	log    *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithEvents sets the lifecycle event emitter.
func WithEvents(e event.Emitter) Option {
	return func(s *Service) { s.events = e }
}

// WithLogger sets the structured logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates the session service.
func New(st Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		events: noopEmitter{},
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, any) {}

// Create opens a new session for the user with a fresh 64-character token.
func (s *Service) Create(ctx context.Context, userID, name string) (*Session, error) {
	bearer, err := token.Secure(sessionTokenLength)
	if err != nil {
		return nil, autherr.ErrInternalError
	}

	sess := &Session{
		ID:       ulid.Make().String(),
		UserID:   userID,
		Token:    bearer,
		Name:     name,
		LastSeen: time.Now(),
	}
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, autherr.NewDatabaseError("save", "session")
	}

	s.events.Emit(ctx, event.SessionCreated{UserID: userID, SessionID: sess.ID, Name: name})
	s.log.InfoContext(ctx, "session created",
		logger.AccountID(userID), logger.SessionID(sess.ID))
	return sess, nil
}

// Logout deletes the caller's own session.
func (s *Service) Logout(ctx context.Context, sess *Session) error {
	if err := s.store.DeleteSession(ctx, sess.ID); err != nil {
		return autherr.NewDatabaseError("delete", "session")
	}
	s.events.Emit(ctx, event.SessionDeleted{UserID: sess.UserID, SessionID: sess.ID})
	return nil
}

// Revoke deletes another session of the same user. A target that does not
// exist or belongs to someone else fails identically with InvalidToken.
func (s *Service) Revoke(ctx context.Context, by *Session, targetID string) error {
	target, err := s.store.FindSession(ctx, targetID)
	if errors.Is(err, store.ErrNotFound) {
		return autherr.ErrInvalidToken
	}
	if err != nil {
		return autherr.NewDatabaseError("find_one", "session")
	}
	if target.UserID != by.UserID {
		return autherr.ErrInvalidToken
	}

	if err := s.store.DeleteSession(ctx, target.ID); err != nil {
		return autherr.NewDatabaseError("delete", "session")
	}
	s.events.Emit(ctx, event.SessionDeleted{UserID: target.UserID, SessionID: target.ID})
	return nil
}

// RevokeAll deletes every session of the user. exceptSessionID, when
// non-empty, names the caller's session to keep.
func (s *Service) RevokeAll(ctx context.Context, userID, exceptSessionID string) error {
	if err := s.store.DeleteAllSessions(ctx, userID, exceptSessionID); err != nil {
		return autherr.NewDatabaseError("delete", "session")
	}
	s.events.Emit(ctx, event.AllSessionsDeleted{UserID: userID, ExceptSessionID: exceptSessionID})
	s.log.InfoContext(ctx, "all sessions revoked", logger.AccountID(userID))
	return nil
}

// Edit renames a session. Only the owner may rename; a foreign or missing
// target fails with InvalidSession.
func (s *Service) Edit(ctx context.Context, by *Session, targetID, name string) (*Session, error) {
	target, err := s.store.FindSession(ctx, targetID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, autherr.ErrInvalidSession
	}
	if err != nil {
		return nil, autherr.NewDatabaseError("find_one", "session")
	}
	if target.UserID != by.UserID {
		return nil, autherr.ErrInvalidSession
	}

	target.Name = name
	if err := s.store.SaveSession(ctx, target); err != nil {
		return nil, autherr.NewDatabaseError("save", "session")
	}
	return target, nil
}

// TouchLastSeen records activity on the session.
func (s *Service) TouchLastSeen(ctx context.Context, sess *Session) error {
	sess.LastSeen = time.Now()
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return autherr.NewDatabaseError("save", "session")
	}
	return nil
}
