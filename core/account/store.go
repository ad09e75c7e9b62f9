package account

import "context"

// Store is the persistence contract for accounts and invites.
//
// Token lookups (verification, password reset, deletion) must enforce expiry
// at read time: an expired token behaves exactly like an absent one and
// surfaces store.ErrNotFound. The normalised-email lookup must match
// case-insensitively even when the backing index is case-sensitive.
type Store interface {
	FindAccount(ctx context.Context, id string) (*Account, error)
	FindAccountByNormalisedEmail(ctx context.Context, normalised string) (*Account, error)
	FindAccountWithEmailVerification(ctx context.Context, token string) (*Account, error)
	FindAccountWithPasswordReset(ctx context.Context, token string) (*Account, error)
	FindAccountWithDeletionToken(ctx context.Context, token string) (*Account, error)
	// FindAccountsDueForDeletion returns accounts whose deletion is Scheduled
	// with an elapsed grace period. Consumed by the host's deletion worker.
	FindAccountsDueForDeletion(ctx context.Context) ([]Account, error)
	SaveAccount(ctx context.Context, account *Account) error
	DeleteAccount(ctx context.Context, id string) error

	FindInvite(ctx context.Context, id string) (*Invite, error)
	SaveInvite(ctx context.Context, invite *Invite) error
}
