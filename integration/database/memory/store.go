// Package memory provides an in-process store for tests and local
// development. It honors the same contracts as the MongoDB layer:
// case-insensitive email uniqueness, read-time token expiry, and the
// duplicate-key surface.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/authifier/authifier/core/account"
	"github.com/authifier/authifier/core/mfa"
	"github.com/authifier/authifier/core/session"
	"github.com/authifier/authifier/core/sso"
	"github.com/authifier/authifier/core/store"
	"github.com/authifier/authifier/pkg/token"
)

// Store keeps everything in maps behind one mutex. Values are copied on the
// way in and out so callers cannot mutate stored state by accident.
type Store struct {
	mu sync.RWMutex

	accounts  map[string]account.Account
	invites   map[string]account.Invite
	sessions  map[string]session.Session
	tickets   map[string]mfa.Ticket
	callbacks map[string]sso.Callback
	secret    []byte
}

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts:  make(map[string]account.Account),
		invites:   make(map[string]account.Invite),
		sessions:  make(map[string]session.Session),
		tickets:   make(map[string]mfa.Ticket),
		callbacks: make(map[string]sso.Callback),
	}
}

// cloneAccount copies the aggregate including its pointer fields so stored
// state never aliases a value a caller holds.
func cloneAccount(acc *account.Account) account.Account {
	out := *acc
	if acc.PasswordReset != nil {
		r := *acc.PasswordReset
		out.PasswordReset = &r
	}
	if acc.Deletion != nil {
		d := *acc.Deletion
		out.Deletion = &d
	}
	if acc.Lockout != nil {
		l := *acc.Lockout
		if acc.Lockout.Expiry != nil {
			e := *acc.Lockout.Expiry
			l.Expiry = &e
		}
		out.Lockout = &l
	}
	out.MFA.RecoveryCodes = slices.Clone(acc.MFA.RecoveryCodes)
	return out
}

func cloneSession(sess *session.Session) session.Session {
	out := *sess
	if sess.Subscription != nil {
		sub := *sess.Subscription
		out.Subscription = &sub
	}
	return out
}

func (s *Store) FindAccount(_ context.Context, id string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneAccount(&acc)
	return &out, nil
}

func (s *Store) FindAccountByNormalisedEmail(_ context.Context, normalised string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acc := range s.accounts {
		if strings.EqualFold(acc.EmailNormalised, normalised) {
			out := cloneAccount(&acc)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindAccountWithEmailVerification(_ context.Context, verifyToken string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	for _, acc := range s.accounts {
		if acc.Verification.Token == verifyToken && verifyToken != "" && acc.Verification.Expiry.After(now) {
			out := cloneAccount(&acc)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindAccountWithPasswordReset(_ context.Context, resetToken string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	for _, acc := range s.accounts {
		r := acc.PasswordReset
		if r != nil && r.Token == resetToken && resetToken != "" && r.Expiry.After(now) {
			out := cloneAccount(&acc)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindAccountWithDeletionToken(_ context.Context, deleteToken string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	for _, acc := range s.accounts {
		d := acc.Deletion
		if d != nil && d.Token == deleteToken && deleteToken != "" && d.Expiry.After(now) {
			out := cloneAccount(&acc)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindAccountsDueForDeletion(_ context.Context) ([]account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	var due []account.Account
	for _, acc := range s.accounts {
		d := acc.Deletion
		if d != nil && d.Status == account.DeletionScheduled && d.After.Before(now) {
			due = append(due, cloneAccount(&acc))
		}
	}
	return due, nil
}

func (s *Store) SaveAccount(_ context.Context, acc *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.accounts {
		if id == acc.ID {
			continue
		}
		if strings.EqualFold(other.EmailNormalised, acc.EmailNormalised) ||
			strings.EqualFold(other.Email, acc.Email) {
			return store.ErrDuplicateKey
		}
	}
	s.accounts[acc.ID] = cloneAccount(acc)
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
	return nil
}

func (s *Store) FindInvite(_ context.Context, id string) (*account.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invites[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &inv, nil
}

func (s *Store) SaveInvite(_ context.Context, inv *account.Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[inv.ID] = *inv
	return nil
}

func (s *Store) FindSession(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneSession(&sess)
	return &out, nil
}

func (s *Store) FindSessionByToken(_ context.Context, bearer string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if sess.Token == bearer {
			out := cloneSession(&sess)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindSessions(_ context.Context, userID string) ([]session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []session.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, cloneSession(&sess))
		}
	}
	return out, nil
}

func (s *Store) FindSessionsWithSubscription(_ context.Context, userIDs []string) ([]session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		ids[id] = struct{}{}
	}
	var out []session.Session
	for _, sess := range s.sessions {
		if _, ok := ids[sess.UserID]; ok && sess.Subscription != nil {
			out = append(out, cloneSession(&sess))
		}
	}
	return out, nil
}

func (s *Store) SaveSession(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.sessions {
		if id != sess.ID && other.Token == sess.Token {
			return store.ErrDuplicateKey
		}
	}
	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *Store) DeleteAllSessions(_ context.Context, userID string, except string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.UserID == userID && id != except {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *Store) FindTicketByToken(_ context.Context, bearer string) (*mfa.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	for _, t := range s.tickets {
		if t.Token == bearer {
			if t.Expired(now) {
				return nil, store.ErrNotFound
			}
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) SaveTicket(_ context.Context, ticket *mfa.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.tickets {
		if id != ticket.ID && other.Token == ticket.Token {
			return store.ErrDuplicateKey
		}
	}
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *Store) DeleteTicket(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, id)
	return nil
}

func (s *Store) FindCallback(_ context.Context, id string) (*sso.Callback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, ok := s.callbacks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if cb.Expired(time.Now()) {
		delete(s.callbacks, id)
		return nil, store.ErrNotFound
	}
	return &cb, nil
}

func (s *Store) SaveCallback(_ context.Context, cb *sso.Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[cb.ID] = *cb
	return nil
}

func (s *Store) DeleteCallback(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.callbacks, id)
	return nil
}

// Secret mints a signing key on first use and returns the same key after.
func (s *Store) Secret(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.secret == nil {
		key, err := token.Secure(64)
		if err != nil {
			return nil, err
		}
		s.secret = []byte(key)
	}
	return s.secret, nil
}
