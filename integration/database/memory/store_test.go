package memory_test

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authifier/authifier/core/account"
	"github.com/authifier/authifier/core/mfa"
	"github.com/authifier/authifier/core/session"
	"github.com/authifier/authifier/core/sso"
	"github.com/authifier/authifier/core/store"
	"github.com/authifier/authifier/integration/database/memory"
)

func TestAccountUniqueness(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()

	require.NoError(t, st.SaveAccount(ctx, &account.Account{
		ID: "a1", Email: "alice@example.com", EmailNormalised: "alice@example.com",
	}))

	// Case-insensitive duplicate on the normalised address.
	err := st.SaveAccount(ctx, &account.Account{
		ID: "a2", Email: "other@example.com", EmailNormalised: "ALICE@example.com",
	})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	// Updating the same account is not a duplicate.
	assert.NoError(t, st.SaveAccount(ctx, &account.Account{
		ID: "a1", Email: "alice@example.com", EmailNormalised: "alice@example.com", Disabled: true,
	}))
}

func TestNormalisedLookupIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()

	require.NoError(t, st.SaveAccount(ctx, &account.Account{
		ID: "a1", Email: "Alice@example.com", EmailNormalised: "alice@example.com",
	}))

	acc, err := st.FindAccountByNormalisedEmail(ctx, "ALICE@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, "a1", acc.ID)
}

func TestTokenLookupsEnforceExpiry(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()

	require.NoError(t, st.SaveAccount(ctx, &account.Account{
		ID: "a1", Email: "a@example.com", EmailNormalised: "a@example.com",
		Verification: account.Verification{
			Status: account.VerificationPending,
			Token:  "fresh-token",
			Expiry: time.Now().Add(time.Hour),
		},
		PasswordReset: &account.PasswordReset{
			Token:  "stale-reset",
			Expiry: time.Now().Add(-time.Minute),
		},
	}))

	_, err := st.FindAccountWithEmailVerification(ctx, "fresh-token")
	assert.NoError(t, err)

	_, err = st.FindAccountWithPasswordReset(ctx, "stale-reset")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// The empty token never matches, even against accounts without one.
	_, err = st.FindAccountWithDeletionToken(ctx, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionTokenUniqueness(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()

	require.NoError(t, st.SaveSession(ctx, &session.Session{ID: "s1", UserID: "u1", Token: "tok"}))
	err := st.SaveSession(ctx, &session.Session{ID: "s2", UserID: "u2", Token: "tok"})
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestDeleteAllSessionsKeepsExcept(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()

	require.NoError(t, st.SaveSession(ctx, &session.Session{ID: "s1", UserID: "u1", Token: "t1"}))
	require.NoError(t, st.SaveSession(ctx, &session.Session{ID: "s2", UserID: "u1", Token: "t2"}))
	require.NoError(t, st.SaveSession(ctx, &session.Session{ID: "s3", UserID: "u2", Token: "t3"}))

	require.NoError(t, st.DeleteAllSessions(ctx, "u1", "s2"))

	left, err := st.FindSessions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "s2", left[0].ID)

	other, err := st.FindSessions(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestFindSessionsWithSubscription(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()

	require.NoError(t, st.SaveSession(ctx, &session.Session{ID: "s1", UserID: "u1", Token: "t1"}))
	require.NoError(t, st.SaveSession(ctx, &session.Session{
		ID: "s2", UserID: "u1", Token: "t2",
		Subscription: &session.WebPushSubscription{Endpoint: "https://push.example"},
	}))
	require.NoError(t, st.SaveSession(ctx, &session.Session{
		ID: "s3", UserID: "u2", Token: "t3",
		Subscription: &session.WebPushSubscription{Endpoint: "https://push.example"},
	}))

	subs, err := st.FindSessionsWithSubscription(ctx, []string{"u1"})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "s2", subs[0].ID)
}

func TestTicketExpiryAtRead(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()

	fresh := &mfa.Ticket{ID: ulid.Make().String(), AccountID: "a1", Token: "fresh"}
	require.NoError(t, st.SaveTicket(ctx, fresh))
	_, err := st.FindTicketByToken(ctx, "fresh")
	assert.NoError(t, err)

	old := ulid.MustNew(ulid.Timestamp(time.Now().Add(-2*time.Minute)), rand.Reader)
	require.NoError(t, st.SaveTicket(ctx, &mfa.Ticket{ID: old.String(), AccountID: "a1", Token: "stale"}))
	_, err = st.FindTicketByToken(ctx, "stale")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCallbackExpiryAtRead(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()

	fresh := &sso.Callback{ID: ulid.Make().String(), IdPID: "idp"}
	require.NoError(t, st.SaveCallback(ctx, fresh))
	_, err := st.FindCallback(ctx, fresh.ID)
	assert.NoError(t, err)

	old := ulid.MustNew(ulid.Timestamp(time.Now().Add(-11*time.Minute)), rand.Reader)
	require.NoError(t, st.SaveCallback(ctx, &sso.Callback{ID: old.String(), IdPID: "idp"}))
	_, err = st.FindCallback(ctx, old.String())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAccountsDoNotAliasStoredState(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()

	lockExpiry := time.Now().Add(time.Minute)
	saved := &account.Account{
		ID: "a1", Email: "a@example.com", EmailNormalised: "a@example.com",
		PasswordReset: &account.PasswordReset{Token: "reset", Expiry: time.Now().Add(time.Hour)},
		Lockout:       &account.Lockout{Attempts: 3, Expiry: &lockExpiry},
		MFA:           account.MFA{RecoveryCodes: []string{"aaaaa-aaaaa", "bbbbb-bbbbb"}},
	}
	require.NoError(t, st.SaveAccount(ctx, saved))

	// Mutating the value we saved must not touch the stored copy.
	saved.PasswordReset.Token = "tampered"
	saved.Lockout.Attempts = 0
	*saved.Lockout.Expiry = time.Time{}
	saved.MFA.RecoveryCodes[0] = "zzzzz-zzzzz"

	got, err := st.FindAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "reset", got.PasswordReset.Token)
	assert.Equal(t, 3, got.Lockout.Attempts)
	assert.True(t, got.Lockout.Active(time.Now()))
	assert.Equal(t, "aaaaa-aaaaa", got.MFA.RecoveryCodes[0])

	// And mutating a returned value must not change stored state either.
	got.MFA.RecoveryCodes = got.MFA.RecoveryCodes[:1]
	got.PasswordReset.Token = "also tampered"

	again, err := st.FindAccount(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, again.MFA.RecoveryCodes, 2)
	assert.Equal(t, "reset", again.PasswordReset.Token)
}

func TestSessionsDoNotAliasStoredState(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()

	require.NoError(t, st.SaveSession(ctx, &session.Session{
		ID: "s1", UserID: "u1", Token: "t1",
		Subscription: &session.WebPushSubscription{Endpoint: "https://push.example"},
	}))

	got, err := st.FindSession(ctx, "s1")
	require.NoError(t, err)
	got.Subscription.Endpoint = "https://evil.example"

	again, err := st.FindSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "https://push.example", again.Subscription.Endpoint)
}

func TestSecretIsStable(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()

	first, err := st.Secret(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 64)

	second, err := st.Secret(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
