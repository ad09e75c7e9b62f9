package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/authifier/authifier/core/account"
	"github.com/authifier/authifier/core/mfa"
	"github.com/authifier/authifier/core/session"
	"github.com/authifier/authifier/core/sso"
	"github.com/authifier/authifier/core/store"
	"github.com/authifier/authifier/pkg/token"
)

// Collection names.
const (
	colAccounts  = "accounts"
	colSessions  = "sessions"
	colTickets   = "mfa_tickets"
	colInvites   = "invites"
	colCallbacks = "sso_callbacks"
	colSecrets   = "secrets"
)

// secretID is the _id of the singleton signing-secret document.
const secretID = "secret"

// secretLength is the size of a freshly minted signing secret in characters.
const secretLength = 64

// caseInsensitive is the collation applied to normalised-email lookups and
// their unique index. Strength 2 ignores case but not accents.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// Store is the MongoDB-backed persistence layer. It satisfies every
// per-concern store contract of the engine.
type Store struct {
	db *mongo.Database
}

// NewStore wraps an already connected database.
func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrDuplicateKey
	default:
		return err
	}
}

func (s *Store) findAccount(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOneOptions]) (*account.Account, error) {
	var acc account.Account
	if err := s.db.Collection(colAccounts).FindOne(ctx, filter, opts...).Decode(&acc); err != nil {
		return nil, translate(err)
	}
	return &acc, nil
}

func (s *Store) FindAccount(ctx context.Context, id string) (*account.Account, error) {
	return s.findAccount(ctx, bson.M{"_id": id})
}

func (s *Store) FindAccountByNormalisedEmail(ctx context.Context, normalised string) (*account.Account, error) {
	return s.findAccount(ctx,
		bson.M{"email_normalised": normalised},
		options.FindOne().SetCollation(caseInsensitive))
}

func (s *Store) FindAccountWithEmailVerification(ctx context.Context, verifyToken string) (*account.Account, error) {
	return s.findAccount(ctx, bson.M{
		"verification.token":  verifyToken,
		"verification.expiry": bson.M{"$gt": time.Now()},
	})
}

func (s *Store) FindAccountWithPasswordReset(ctx context.Context, resetToken string) (*account.Account, error) {
	return s.findAccount(ctx, bson.M{
		"password_reset.token":  resetToken,
		"password_reset.expiry": bson.M{"$gt": time.Now()},
	})
}

func (s *Store) FindAccountWithDeletionToken(ctx context.Context, deleteToken string) (*account.Account, error) {
	return s.findAccount(ctx, bson.M{
		"deletion.token":  deleteToken,
		"deletion.expiry": bson.M{"$gt": time.Now()},
	})
}

func (s *Store) FindAccountsDueForDeletion(ctx context.Context) ([]account.Account, error) {
	cursor, err := s.db.Collection(colAccounts).Find(ctx, bson.M{
		"deletion.status": account.DeletionScheduled,
		"deletion.after":  bson.M{"$lt": time.Now()},
	})
	if err != nil {
		return nil, err
	}
	var accounts []account.Account
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Store) SaveAccount(ctx context.Context, acc *account.Account) error {
	_, err := s.db.Collection(colAccounts).ReplaceOne(ctx,
		bson.M{"_id": acc.ID}, acc, options.Replace().SetUpsert(true))
	return translate(err)
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	_, err := s.db.Collection(colAccounts).DeleteOne(ctx, bson.M{"_id": id})
	return translate(err)
}

func (s *Store) FindInvite(ctx context.Context, id string) (*account.Invite, error) {
	var inv account.Invite
	if err := s.db.Collection(colInvites).FindOne(ctx, bson.M{"_id": id}).Decode(&inv); err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (s *Store) SaveInvite(ctx context.Context, inv *account.Invite) error {
	_, err := s.db.Collection(colInvites).ReplaceOne(ctx,
		bson.M{"_id": inv.ID}, inv, options.Replace().SetUpsert(true))
	return translate(err)
}

func (s *Store) findSession(ctx context.Context, filter bson.M) (*session.Session, error) {
	var sess session.Session
	if err := s.db.Collection(colSessions).FindOne(ctx, filter).Decode(&sess); err != nil {
		return nil, translate(err)
	}
	return &sess, nil
}

func (s *Store) FindSession(ctx context.Context, id string) (*session.Session, error) {
	return s.findSession(ctx, bson.M{"_id": id})
}

func (s *Store) FindSessionByToken(ctx context.Context, bearer string) (*session.Session, error) {
	return s.findSession(ctx, bson.M{"token": bearer})
}

func (s *Store) findSessions(ctx context.Context, filter bson.M) ([]session.Session, error) {
	cursor, err := s.db.Collection(colSessions).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var sessions []session.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *Store) FindSessions(ctx context.Context, userID string) ([]session.Session, error) {
	return s.findSessions(ctx, bson.M{"user_id": userID})
}

func (s *Store) FindSessionsWithSubscription(ctx context.Context, userIDs []string) ([]session.Session, error) {
	return s.findSessions(ctx, bson.M{
		"user_id":      bson.M{"$in": userIDs},
		"subscription": bson.M{"$exists": true},
	})
}

func (s *Store) SaveSession(ctx context.Context, sess *session.Session) error {
	_, err := s.db.Collection(colSessions).ReplaceOne(ctx,
		bson.M{"_id": sess.ID}, sess, options.Replace().SetUpsert(true))
	return translate(err)
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.Collection(colSessions).DeleteOne(ctx, bson.M{"_id": id})
	return translate(err)
}

func (s *Store) DeleteAllSessions(ctx context.Context, userID string, except string) error {
	filter := bson.M{"user_id": userID}
	if except != "" {
		filter["_id"] = bson.M{"$ne": except}
	}
	_, err := s.db.Collection(colSessions).DeleteMany(ctx, filter)
	return translate(err)
}

// FindTicketByToken enforces the 60 second ticket window at read time: a
// stale ticket behaves exactly like an absent one.
func (s *Store) FindTicketByToken(ctx context.Context, bearer string) (*mfa.Ticket, error) {
	var ticket mfa.Ticket
	if err := s.db.Collection(colTickets).FindOne(ctx, bson.M{"token": bearer}).Decode(&ticket); err != nil {
		return nil, translate(err)
	}
	if ticket.Expired(time.Now()) {
		return nil, store.ErrNotFound
	}
	return &ticket, nil
}

func (s *Store) SaveTicket(ctx context.Context, ticket *mfa.Ticket) error {
	_, err := s.db.Collection(colTickets).ReplaceOne(ctx,
		bson.M{"_id": ticket.ID}, ticket, options.Replace().SetUpsert(true))
	return translate(err)
}

func (s *Store) DeleteTicket(ctx context.Context, id string) error {
	_, err := s.db.Collection(colTickets).DeleteOne(ctx, bson.M{"_id": id})
	return translate(err)
}

// FindCallback enforces the 10 minute callback window at read time.
func (s *Store) FindCallback(ctx context.Context, id string) (*sso.Callback, error) {
	var cb sso.Callback
	if err := s.db.Collection(colCallbacks).FindOne(ctx, bson.M{"_id": id}).Decode(&cb); err != nil {
		return nil, translate(err)
	}
	if cb.Expired(time.Now()) {
		_, _ = s.db.Collection(colCallbacks).DeleteOne(ctx, bson.M{"_id": id})
		return nil, store.ErrNotFound
	}
	return &cb, nil
}

func (s *Store) SaveCallback(ctx context.Context, cb *sso.Callback) error {
	_, err := s.db.Collection(colCallbacks).ReplaceOne(ctx,
		bson.M{"_id": cb.ID}, cb, options.Replace().SetUpsert(true))
	return translate(err)
}

func (s *Store) DeleteCallback(ctx context.Context, id string) error {
	_, err := s.db.Collection(colCallbacks).DeleteOne(ctx, bson.M{"_id": id})
	return translate(err)
}

type secretDoc struct {
	ID  string `bson:"_id"`
	Key string `bson:"key"`
}

// Secret loads the process signing key, minting and persisting one on first
// use. Concurrent first calls settle on the stored key: the insert is
// guarded by the _id and losers re-read.
func (s *Store) Secret(ctx context.Context) ([]byte, error) {
	col := s.db.Collection(colSecrets)

	var doc secretDoc
	err := col.FindOne(ctx, bson.M{"_id": secretID}).Decode(&doc)
	if err == nil {
		return []byte(doc.Key), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	key, err := token.Secure(secretLength)
	if err != nil {
		return nil, err
	}
	_, err = col.InsertOne(ctx, secretDoc{ID: secretID, Key: key})
	if mongo.IsDuplicateKeyError(err) {
		if err := col.FindOne(ctx, bson.M{"_id": secretID}).Decode(&doc); err != nil {
			return nil, err
		}
		return []byte(doc.Key), nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(key), nil
}
