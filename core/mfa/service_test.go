package mfa_test

import (
	"context"
	"crypto/rand"
	"regexp"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authifier/authifier/core/account"
	"github.com/authifier/authifier/core/autherr"
	"github.com/authifier/authifier/core/mfa"
	"github.com/authifier/authifier/integration/database/memory"
	"github.com/authifier/authifier/pkg/password"
	"github.com/authifier/authifier/pkg/totp"
)

func newService(t *testing.T) (*mfa.Service, *memory.Store, *account.Account) {
	t.Helper()

	st := memory.New()
	accounts := account.New(st, account.Config{})
	svc := mfa.New(st, st, accounts)

	hash, err := password.Hash("the-password")
	require.NoError(t, err)
	acc := &account.Account{
		ID:              ulid.Make().String(),
		Email:           "mfa@example.com",
		EmailNormalised: account.Normalise("mfa@example.com"),
		PasswordHash:    hash,
		Verification:    account.Verification{Status: account.VerificationVerified},
	}
	require.NoError(t, st.SaveAccount(context.Background(), acc))
	return svc, st, acc
}

func enableTotp(t *testing.T, svc *mfa.Service, acc *account.Account) string {
	t.Helper()
	ctx := context.Background()

	secret, err := svc.GenerateTOTPSecret(ctx, acc)
	require.NoError(t, err)

	code, err := totp.GenerateCode(secret)
	require.NoError(t, err)
	require.NoError(t, svc.EnableTOTP(ctx, acc, code))
	return secret
}

func TestTicketLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("create and find", func(t *testing.T) {
		t.Parallel()

		svc, _, acc := newService(t)
		ctx := context.Background()

		ticket, err := svc.CreateTicket(ctx, acc.ID, false)
		require.NoError(t, err)
		assert.Len(t, ticket.Token, 64)
		assert.False(t, ticket.Validated)
		assert.False(t, ticket.Authorised)

		found, foundAcc, err := svc.FindTicket(ctx, ticket.Token)
		require.NoError(t, err)
		assert.Equal(t, ticket.ID, found.ID)
		assert.Equal(t, acc.ID, foundAcc.ID)
	})

	t.Run("expired tickets are invisible", func(t *testing.T) {
		t.Parallel()

		svc, st, acc := newService(t)
		ctx := context.Background()

		// Forge a ticket whose ULID timestamp is two minutes old.
		old := ulid.MustNew(ulid.Timestamp(time.Now().Add(-2*time.Minute)), rand.Reader)
		stale := &mfa.Ticket{ID: old.String(), AccountID: acc.ID, Token: "stale-token"}
		require.NoError(t, st.SaveTicket(ctx, stale))

		_, _, err := svc.FindTicket(ctx, "stale-token")
		assert.ErrorIs(t, err, autherr.ErrInvalidToken)
	})

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newService(t)
		_, _, err := svc.FindTicket(context.Background(), "never-issued")
		assert.ErrorIs(t, err, autherr.ErrInvalidToken)
	})
}

func TestConsumeResponse(t *testing.T) {
	t.Parallel()

	t.Run("password answers", func(t *testing.T) {
		t.Parallel()

		svc, _, acc := newService(t)
		ctx := context.Background()

		ticket, err := svc.CreateTicket(ctx, acc.ID, false)
		require.NoError(t, err)

		validated, err := svc.ConsumeResponse(ctx, acc, ticket, mfa.Response{Password: "the-password"})
		require.NoError(t, err)
		assert.True(t, validated.Validated)
	})

	t.Run("wrong password drives the lockout path", func(t *testing.T) {
		t.Parallel()

		svc, _, acc := newService(t)
		ctx := context.Background()

		ticket, err := svc.CreateTicket(ctx, acc.ID, false)
		require.NoError(t, err)

		_, err = svc.ConsumeResponse(ctx, acc, ticket, mfa.Response{Password: "wrong"})
		assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
		require.NotNil(t, acc.Lockout)
		assert.Equal(t, 1, acc.Lockout.Attempts)
	})

	t.Run("totp current code and per-ticket replay", func(t *testing.T) {
		t.Parallel()

		svc, _, acc := newService(t)
		ctx := context.Background()
		secret := enableTotp(t, svc, acc)

		ticket, err := svc.CreateTicket(ctx, acc.ID, false)
		require.NoError(t, err)

		code, err := totp.GenerateCode(secret)
		require.NoError(t, err)

		validated, err := svc.ConsumeResponse(ctx, acc, ticket, mfa.Response{TotpCode: code})
		require.NoError(t, err)
		assert.True(t, validated.Validated)

		// The accepted code replays within the same ticket.
		_, err = svc.ConsumeResponse(ctx, acc, validated, mfa.Response{TotpCode: code})
		assert.NoError(t, err)

		// A fresh ticket does not honor the old ticket's code memory; only a
		// currently valid code works.
		fresh, err := svc.CreateTicket(ctx, acc.ID, false)
		require.NoError(t, err)
		_, err = svc.ConsumeResponse(ctx, acc, fresh, mfa.Response{TotpCode: "000000"})
		assert.ErrorIs(t, err, autherr.ErrInvalidToken)
	})

	t.Run("recovery codes are spent on use", func(t *testing.T) {
		t.Parallel()

		svc, _, acc := newService(t)
		ctx := context.Background()

		codes, err := svc.GenerateRecoveryCodes(ctx, acc)
		require.NoError(t, err)
		require.Len(t, codes, 10)

		ticket, err := svc.CreateTicket(ctx, acc.ID, false)
		require.NoError(t, err)
		_, err = svc.ConsumeResponse(ctx, acc, ticket, mfa.Response{RecoveryCode: codes[0]})
		require.NoError(t, err)
		assert.Len(t, acc.MFA.RecoveryCodes, 9)

		// Second use of the same code fails.
		next, err := svc.CreateTicket(ctx, acc.ID, false)
		require.NoError(t, err)
		_, err = svc.ConsumeResponse(ctx, acc, next, mfa.Response{RecoveryCode: codes[0]})
		assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
	})

	t.Run("methods the account lacks are disallowed", func(t *testing.T) {
		t.Parallel()

		svc, _, acc := newService(t)
		ctx := context.Background()

		ticket, err := svc.CreateTicket(ctx, acc.ID, false)
		require.NoError(t, err)

		// No TOTP enrolled, no recovery codes issued.
		_, err = svc.ConsumeResponse(ctx, acc, ticket, mfa.Response{TotpCode: "123456"})
		assert.ErrorIs(t, err, autherr.ErrDisallowedMFAMethod)
		_, err = svc.ConsumeResponse(ctx, acc, ticket, mfa.Response{RecoveryCode: "aaaaa-aaaaa"})
		assert.ErrorIs(t, err, autherr.ErrDisallowedMFAMethod)
		_, err = svc.ConsumeResponse(ctx, acc, ticket, mfa.Response{})
		assert.ErrorIs(t, err, autherr.ErrDisallowedMFAMethod)
	})
}

func TestClaimTicket(t *testing.T) {
	t.Parallel()

	t.Run("authorised tickets are one shot", func(t *testing.T) {
		t.Parallel()

		svc, _, acc := newService(t)
		ctx := context.Background()

		ticket, err := svc.CreateTicket(ctx, acc.ID, true)
		require.NoError(t, err)

		require.NoError(t, svc.ClaimTicket(ctx, ticket))

		_, _, err = svc.FindTicket(ctx, ticket.Token)
		assert.ErrorIs(t, err, autherr.ErrInvalidToken)
	})

	t.Run("unauthorised tickets cannot be claimed", func(t *testing.T) {
		t.Parallel()

		svc, _, acc := newService(t)
		ctx := context.Background()

		ticket, err := svc.CreateTicket(ctx, acc.ID, false)
		require.NoError(t, err)
		assert.ErrorIs(t, svc.ClaimTicket(ctx, ticket), autherr.ErrInvalidToken)
	})
}

func TestTOTPEnrollment(t *testing.T) {
	t.Parallel()

	t.Run("generate, enable, disable", func(t *testing.T) {
		t.Parallel()

		svc, st, acc := newService(t)
		ctx := context.Background()

		secret, err := svc.GenerateTOTPSecret(ctx, acc)
		require.NoError(t, err)
		assert.NotEmpty(t, secret)
		assert.Equal(t, account.TotpPending, acc.MFA.Totp.Status)

		// Enabling requires a valid code over the pending secret.
		assert.ErrorIs(t, svc.EnableTOTP(ctx, acc, "000000"), autherr.ErrInvalidToken)

		code, err := totp.GenerateCode(secret)
		require.NoError(t, err)
		require.NoError(t, svc.EnableTOTP(ctx, acc, code))
		assert.Equal(t, account.TotpEnabled, acc.MFA.Totp.Status)
		assert.Contains(t, svc.SecondFactors(acc), mfa.MethodTotp)

		fresh, err := st.FindAccount(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, account.TotpEnabled, fresh.MFA.Totp.Status)

		require.NoError(t, svc.DisableTOTP(ctx, acc))
		assert.Equal(t, account.TotpDisabled, acc.MFA.Totp.Status)
		assert.Empty(t, acc.MFA.Totp.Secret)
	})

	t.Run("re-enrollment of enabled totp is rejected", func(t *testing.T) {
		t.Parallel()

		svc, _, acc := newService(t)
		enableTotp(t, svc, acc)

		_, err := svc.GenerateTOTPSecret(context.Background(), acc)
		assert.ErrorIs(t, err, autherr.ErrTotpAlreadyEnabled)
	})

	t.Run("provisioning uri carries issuer and account", func(t *testing.T) {
		t.Parallel()

		svc, _, acc := newService(t)
		_, err := svc.GenerateTOTPSecret(context.Background(), acc)
		require.NoError(t, err)

		uri := svc.ProvisioningURI(acc)
		assert.Contains(t, uri, "otpauth://totp/")
		assert.Contains(t, uri, "mfa%40example.com")
	})
}

func TestGenerateRecoveryCodes(t *testing.T) {
	t.Parallel()

	svc, _, acc := newService(t)
	ctx := context.Background()

	format := regexp.MustCompile(`^[0-9a-z]{5}-[0-9a-z]{5}$`)

	first, err := svc.GenerateRecoveryCodes(ctx, acc)
	require.NoError(t, err)
	require.Len(t, first, 10)
	for _, code := range first {
		assert.Regexp(t, format, code)
	}

	// Regeneration replaces the whole set.
	second, err := svc.GenerateRecoveryCodes(ctx, acc)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, second, acc.MFA.RecoveryCodes)
}

func TestAllowedMethods(t *testing.T) {
	t.Parallel()

	svc, _, acc := newService(t)

	assert.Equal(t, []mfa.Method{mfa.MethodPassword}, svc.AllowedMethods(acc))
	assert.Empty(t, svc.SecondFactors(acc))

	_, err := svc.GenerateRecoveryCodes(context.Background(), acc)
	require.NoError(t, err)
	enableTotp(t, svc, acc)

	assert.Equal(t, []mfa.Method{mfa.MethodPassword, mfa.MethodRecovery, mfa.MethodTotp}, svc.AllowedMethods(acc))
	assert.Equal(t, []mfa.Method{mfa.MethodRecovery, mfa.MethodTotp}, svc.SecondFactors(acc))
}
