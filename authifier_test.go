package authifier_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authifier/authifier"
	"github.com/authifier/authifier/core/autherr"
	"github.com/authifier/authifier/core/event"
	"github.com/authifier/authifier/core/mfa"
	"github.com/authifier/authifier/core/policy"
	"github.com/authifier/authifier/integration/database/memory"
	"github.com/authifier/authifier/pkg/totp"
)

func testConfig() authifier.Config {
	return authifier.Config{
		EmailVerification:     false,
		VerificationExpiry:    24 * time.Hour,
		PasswordResetExpiry:   time.Hour,
		AccountDeletionExpiry: 24 * time.Hour,
		DeletionGracePeriod:   7 * 24 * time.Hour,
		LogoutOnPasswordReset: true,
		SupportEmail:          "support@example.com",
		Issuer:                "TestApp",
	}
}

func newAuth(t *testing.T, cfg authifier.Config, opts ...authifier.Option) (*authifier.Auth, *memory.Store) {
	t.Helper()

	st := memory.New()
	opts = append(opts, authifier.WithPolicy(policy.Config{
		Blocklist: policy.BlocklistDisabled,
		Password:  policy.PasswordNone,
	}))
	auth, err := authifier.New(context.Background(), cfg, st, opts...)
	require.NoError(t, err)
	t.Cleanup(auth.Close)
	return auth, st
}

func register(t *testing.T, auth *authifier.Auth, email, password string) string {
	t.Helper()
	acc, err := auth.Register(context.Background(), authifier.RegisterRequest{
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return acc.ID
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	t.Run("success opens a session", func(t *testing.T) {
		t.Parallel()

		auth, _ := newAuth(t, testConfig())
		register(t, auth, "alice@example.com", "a strong password")

		resp, err := auth.Login(context.Background(), "alice@example.com", "a strong password", "laptop")
		require.NoError(t, err)
		assert.Equal(t, authifier.LoginSuccess, resp.Result)
		require.NotNil(t, resp.Session)
		assert.Len(t, resp.Session.Token, 64)
	})

	t.Run("login matches under normalisation", func(t *testing.T) {
		t.Parallel()

		auth, _ := newAuth(t, testConfig())
		register(t, auth, "alice@example.com", "a strong password")

		resp, err := auth.Login(context.Background(), "A.lice+promo@Example.COM", "a strong password", "laptop")
		require.NoError(t, err)
		assert.Equal(t, authifier.LoginSuccess, resp.Result)
	})

	t.Run("unknown email fails exactly like a wrong password", func(t *testing.T) {
		t.Parallel()

		auth, _ := newAuth(t, testConfig())
		register(t, auth, "alice@example.com", "a strong password")
		ctx := context.Background()

		_, errUnknown := auth.Login(ctx, "ghost@example.com", "whatever", "laptop")
		_, errWrong := auth.Login(ctx, "alice@example.com", "wrong password", "laptop")
		assert.ErrorIs(t, errUnknown, autherr.ErrInvalidCredentials)
		assert.ErrorIs(t, errWrong, autherr.ErrInvalidCredentials)
	})

	t.Run("pending accounts cannot log in", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.EmailVerification = true
		auth, _ := newAuth(t, cfg)
		register(t, auth, "pending@example.com", "a strong password")

		_, err := auth.Login(context.Background(), "pending@example.com", "a strong password", "laptop")
		assert.ErrorIs(t, err, autherr.ErrUnverifiedAccount)
	})

	t.Run("lockout escalation on repeated failures", func(t *testing.T) {
		t.Parallel()

		auth, _ := newAuth(t, testConfig())
		register(t, auth, "locked@example.com", "a strong password")
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			_, err := auth.Login(ctx, "locked@example.com", "wrong", "laptop")
			require.ErrorIs(t, err, autherr.ErrInvalidCredentials)
		}

		// Third failure armed a lock; even the right password is refused.
		_, err := auth.Login(ctx, "locked@example.com", "a strong password", "laptop")
		assert.ErrorIs(t, err, autherr.ErrLockedOut)
	})
}

func TestMFALogin(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T) (*authifier.Auth, string) {
		t.Helper()
		auth, st := newAuth(t, testConfig())
		id := register(t, auth, "mfa@example.com", "a strong password")
		ctx := context.Background()

		acc, err := st.FindAccount(ctx, id)
		require.NoError(t, err)
		secret, err := auth.MFA().GenerateTOTPSecret(ctx, acc)
		require.NoError(t, err)
		code, err := totp.GenerateCode(secret)
		require.NoError(t, err)
		require.NoError(t, auth.MFA().EnableTOTP(ctx, acc, code))
		return auth, secret
	}

	t.Run("password leg yields a ticket, totp completes it", func(t *testing.T) {
		t.Parallel()

		auth, secret := setup(t)
		ctx := context.Background()

		resp, err := auth.Login(ctx, "mfa@example.com", "a strong password", "laptop")
		require.NoError(t, err)
		assert.Equal(t, authifier.LoginMFA, resp.Result)
		assert.Nil(t, resp.Session)
		require.NotEmpty(t, resp.Ticket)
		assert.Equal(t, []mfa.Method{mfa.MethodTotp}, resp.AllowedMethods)

		code, err := totp.GenerateCode(secret)
		require.NoError(t, err)
		done, err := auth.CompleteMFALogin(ctx, resp.Ticket, mfa.Response{TotpCode: code}, "laptop")
		require.NoError(t, err)
		assert.Equal(t, authifier.LoginSuccess, done.Result)
		require.NotNil(t, done.Session)

		// The ticket was spent.
		_, err = auth.CompleteMFALogin(ctx, resp.Ticket, mfa.Response{TotpCode: code}, "laptop")
		assert.ErrorIs(t, err, autherr.ErrInvalidToken)
	})

	t.Run("wrong code leaves the ticket open", func(t *testing.T) {
		t.Parallel()

		auth, secret := setup(t)
		ctx := context.Background()

		resp, err := auth.Login(ctx, "mfa@example.com", "a strong password", "laptop")
		require.NoError(t, err)

		_, err = auth.CompleteMFALogin(ctx, resp.Ticket, mfa.Response{TotpCode: "000000"}, "laptop")
		require.ErrorIs(t, err, autherr.ErrInvalidToken)

		code, err := totp.GenerateCode(secret)
		require.NoError(t, err)
		done, err := auth.CompleteMFALogin(ctx, resp.Ticket, mfa.Response{TotpCode: code}, "laptop")
		require.NoError(t, err)
		assert.Equal(t, authifier.LoginSuccess, done.Result)
	})
}

func TestDisabledAccountLogin(t *testing.T) {
	t.Parallel()

	auth, st := newAuth(t, testConfig())
	id := register(t, auth, "off@example.com", "a strong password")
	ctx := context.Background()

	acc, err := st.FindAccount(ctx, id)
	require.NoError(t, err)
	require.NoError(t, auth.Accounts().Disable(ctx, acc))

	resp, err := auth.Login(ctx, "off@example.com", "a strong password", "laptop")
	require.NoError(t, err)
	assert.Equal(t, authifier.LoginDisabled, resp.Result)
	assert.Equal(t, id, resp.UserID)
	assert.Nil(t, resp.Session)
}

func TestVerifyEmailIssuesLoginTicket(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.EmailVerification = true
	auth, st := newAuth(t, cfg)
	id := register(t, auth, "fresh@example.com", "a strong password")
	ctx := context.Background()

	acc, err := st.FindAccount(ctx, id)
	require.NoError(t, err)

	out, err := auth.VerifyEmail(ctx, acc.Verification.Token)
	require.NoError(t, err)
	require.NotEmpty(t, out.Ticket)

	// The authorised ticket logs in without a password, once.
	resp, err := auth.LoginWithTicket(ctx, out.Ticket, "first device")
	require.NoError(t, err)
	assert.Equal(t, authifier.LoginSuccess, resp.Result)

	_, err = auth.LoginWithTicket(ctx, out.Ticket, "first device")
	assert.ErrorIs(t, err, autherr.ErrInvalidToken)
}

func TestLoginWithUnauthorisedTicket(t *testing.T) {
	t.Parallel()

	auth, _ := newAuth(t, testConfig())
	id := register(t, auth, "t@example.com", "a strong password")
	ctx := context.Background()

	ticket, err := auth.MFA().CreateTicket(ctx, id, false)
	require.NoError(t, err)

	_, err = auth.LoginWithTicket(ctx, ticket.Token, "device")
	assert.ErrorIs(t, err, autherr.ErrInvalidToken)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	auth, st := newAuth(t, testConfig())
	id := register(t, auth, "s@example.com", "a strong password")
	ctx := context.Background()

	resp, err := auth.Login(ctx, "s@example.com", "a strong password", "laptop")
	require.NoError(t, err)

	sess, acc, err := auth.Authenticate(ctx, resp.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.Session.ID, sess.ID)
	assert.Equal(t, id, acc.ID)

	_, _, err = auth.Authenticate(ctx, "")
	assert.ErrorIs(t, err, autherr.ErrMissingHeaders)
	_, _, err = auth.Authenticate(ctx, "bogus-token")
	assert.ErrorIs(t, err, autherr.ErrInvalidSession)

	// Disabling the account invalidates the session.
	stored, err := st.FindAccount(ctx, id)
	require.NoError(t, err)
	require.NoError(t, auth.Accounts().Disable(ctx, stored))
	_, _, err = auth.Authenticate(ctx, resp.Session.Token)
	assert.ErrorIs(t, err, autherr.ErrInvalidSession)
}

func TestLoginResponseJSON(t *testing.T) {
	t.Parallel()

	auth, _ := newAuth(t, testConfig())
	register(t, auth, "json@example.com", "a strong password")

	resp, err := auth.Login(context.Background(), "json@example.com", "a strong password", "laptop")
	require.NoError(t, err)

	body, err := json.Marshal(resp)
	require.NoError(t, err)

	// Success flattens the session fields into the envelope.
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "Success", decoded["result"])
	assert.Equal(t, resp.Session.ID, decoded["_id"])
	assert.Equal(t, resp.Session.Token, decoded["token"])
}

func TestRegisterPolicyOrder(t *testing.T) {
	t.Parallel()

	// With a captcha secret configured and no token supplied, registration
	// fails before any account is created.
	st := memory.New()
	auth, err := authifier.New(context.Background(), testConfig(), st,
		authifier.WithPolicy(policy.Config{
			Blocklist:        policy.BlocklistDisabled,
			Password:         policy.PasswordNone,
			HCaptchaSecret:   "secret",
			HCaptchaEndpoint: "http://127.0.0.1:1",
		}))
	require.NoError(t, err)
	t.Cleanup(auth.Close)

	_, err = auth.Register(context.Background(), authifier.RegisterRequest{
		Email:    "cap@example.com",
		Password: "a strong password",
	})
	assert.ErrorIs(t, err, autherr.ErrCaptchaFailed)
}

func TestEventsFlow(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(event.WithBufferSize(16))
	auth, _ := newAuth(t, testConfig(), authifier.WithEventBus(bus))
	register(t, auth, "ev@example.com", "a strong password")

	_, err := auth.Login(context.Background(), "ev@example.com", "a strong password", "laptop")
	require.NoError(t, err)

	var names []string
	for i := 0; i < 2; i++ {
		select {
		case evt := <-bus.Events():
			names = append(names, evt.Name)
		case <-time.After(time.Second):
			t.Fatal("expected buffered events")
		}
	}
	assert.Equal(t, []string{"AccountCreated", "SessionCreated"}, names)
}
