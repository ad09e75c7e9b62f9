// Package authifier is an embeddable authentication and account lifecycle
// engine: registration, email verification and move, password reset with
// brute-force lockout, scheduled deletion, bearer sessions, multi-factor
// tickets (TOTP and recovery codes), and OIDC single sign-on.
//
// The engine exposes a programmatic surface intended to sit behind a host
// application's HTTP layer. Construct it with New over a Store implementation
// (integration/database/mongo for production, integration/database/memory for
// tests) and call the flow methods, or reach the per-concern services via the
// accessors.
package authifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/authifier/authifier/core/account"
	"github.com/authifier/authifier/core/autherr"
	"github.com/authifier/authifier/core/email"
	"github.com/authifier/authifier/core/event"
	"github.com/authifier/authifier/core/mfa"
	"github.com/authifier/authifier/core/policy"
	"github.com/authifier/authifier/core/session"
	"github.com/authifier/authifier/core/sso"
	"github.com/authifier/authifier/core/store"
	"github.com/authifier/authifier/pkg/jwt"
)

// Store is the composite persistence contract the engine runs on. One
// implementation backs every collection; the per-concern interfaces let
// services and tests depend only on the slice they use.
type Store interface {
	account.Store
	session.Store
	mfa.Store
	sso.Store

	// Secret returns the process-scoped symmetric signing key, creating and
	// persisting one on first use.
	Secret(ctx context.Context) ([]byte, error)
}

// Auth is the assembled engine.
type Auth struct {
	cfg   Config
	store Store

	accounts *account.Service
	sessions *session.Service
	mfa      *mfa.Service
	sso      *sso.Service
	policy   *policy.Engine
	events   *event.Bus
	log      *slog.Logger
}

type options struct {
	mailer    email.Sender
	providers []sso.Provider
	policyCfg policy.Config
	client    *http.Client
	events    *event.Bus
	log       *slog.Logger
}

// Option configures the engine assembly.
type Option func(*options)

// WithMailer sets the outbound mail transport. Without one, mail-driven flows
// still mutate state but send nothing.
func WithMailer(m email.Sender) Option {
	return func(o *options) { o.mailer = m }
}

// WithProviders configures the SSO identity providers.
func WithProviders(providers ...sso.Provider) Option {
	return func(o *options) { o.providers = append(o.providers, providers...) }
}

// WithPolicy sets the registration policy configuration (blocklist, password
// scanner, captcha, shield).
func WithPolicy(cfg policy.Config) Option {
	return func(o *options) { o.policyCfg = cfg }
}

// WithHTTPClient replaces the shared outbound HTTP client used for captcha,
// shield, and OIDC calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.client = c
		}
	}
}

// WithEventBus replaces the lifecycle event bus, e.g. with one sized for a
// busy deployment.
func WithEventBus(b *event.Bus) Option {
	return func(o *options) {
		if b != nil {
			o.events = b
		}
	}
}

// WithLogger sets the structured logger for every service. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// New assembles the engine: loads the signing secret, builds the per-concern
// services, and wires the cross-service collaborations (policy into account,
// session revocation cascades, password verification into MFA).
func New(ctx context.Context, cfg Config, st Store, opts ...Option) (*Auth, error) {
	o := options{
		policyCfg: policy.Config{
			Blocklist:    policy.BlocklistBundled,
			Password:     policy.PasswordBundled,
			SupportEmail: cfg.SupportEmail,
		},
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.events == nil {
		o.events = event.NewBus(event.WithLogger(o.log))
	}
	if o.policyCfg.SupportEmail == "" {
		o.policyCfg.SupportEmail = cfg.SupportEmail
	}

	secret, err := st.Secret(ctx)
	if err != nil {
		return nil, autherr.NewDatabaseError("find_one", "secret")
	}
	signer, err := jwt.NewSigner(secret)
	if err != nil {
		return nil, err
	}

	policyOpts := []policy.Option{policy.WithLogger(o.log)}
	if o.client != nil {
		policyOpts = append(policyOpts, policy.WithHTTPClient(o.client))
	}
	engine := policy.New(o.policyCfg, policyOpts...)

	sessions := session.New(st,
		session.WithEvents(o.events),
		session.WithLogger(o.log))

	accounts := account.New(st, account.Config{
		EmailVerification:     cfg.EmailVerification,
		InviteOnly:            cfg.InviteOnly,
		VerificationExpiry:    cfg.VerificationExpiry,
		PasswordResetExpiry:   cfg.PasswordResetExpiry,
		AccountDeletionExpiry: cfg.AccountDeletionExpiry,
		DeletionGracePeriod:   cfg.DeletionGracePeriod,
		LogoutOnPasswordReset: cfg.LogoutOnPasswordReset,
		VerifyURL:             cfg.VerifyURL,
		ResetURL:              cfg.ResetURL,
		DeletionURL:           cfg.DeletionURL,
	},
		account.WithMailer(o.mailer),
		account.WithEvents(o.events),
		account.WithPasswordChecker(engine),
		account.WithSessionRevoker(sessions),
		account.WithLogger(o.log))

	mfaSvc := mfa.New(st, st, accounts,
		mfa.WithIssuer(cfg.Issuer),
		mfa.WithLogger(o.log))

	ssoOpts := []sso.Option{sso.WithLogger(o.log)}
	if o.client != nil {
		ssoOpts = append(ssoOpts, sso.WithHTTPClient(o.client))
	}
	ssoSvc := sso.New(o.providers, st, signer, ssoOpts...)

	return &Auth{
		cfg:      cfg,
		store:    st,
		accounts: accounts,
		sessions: sessions,
		mfa:      mfaSvc,
		sso:      ssoSvc,
		policy:   engine,
		events:   o.events,
		log:      o.log,
	}, nil
}

// Accessors to the per-concern services.

func (a *Auth) Accounts() *account.Service { return a.accounts }
func (a *Auth) Sessions() *session.Service { return a.sessions }
func (a *Auth) MFA() *mfa.Service          { return a.mfa }
func (a *Auth) SSO() *sso.Service          { return a.sso }
func (a *Auth) Policy() *policy.Engine     { return a.policy }
func (a *Auth) Events() *event.Bus         { return a.events }
func (a *Auth) Config() Config             { return a.cfg }

// Close shuts the event bus down.
func (a *Auth) Close() {
	a.events.Close()
}

// RegisterRequest is the full registration input, including the policy-check
// material the HTTP layer collected.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Invite   string `json:"invite,omitempty"`

	// Captcha is the hCaptcha response token, when captcha is enabled.
	Captcha string `json:"captcha,omitempty"`
	// IP and UserAgent feed the shield check.
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// Register runs the policy checks in their documented order, then creates the
// account: captcha, shield, email, password, account.
func (a *Auth) Register(ctx context.Context, req RegisterRequest) (*account.Account, error) {
	if err := a.policy.VerifyCaptcha(ctx, req.Captcha); err != nil {
		return nil, err
	}
	if err := a.policy.CheckShield(ctx, policy.ShieldInput{
		Email:     req.Email,
		IP:        req.IP,
		UserAgent: req.UserAgent,
	}); err != nil {
		return nil, err
	}
	if err := a.policy.ValidateEmail(ctx, req.Email); err != nil {
		return nil, err
	}
	if err := a.policy.CheckPassword(ctx, req.Password); err != nil {
		return nil, err
	}
	return a.accounts.Register(ctx, account.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Invite:   req.Invite,
	})
}

// Login result discriminators.
const (
	LoginSuccess  = "Success"
	LoginMFA      = "MFA"
	LoginDisabled = "Disabled"
)

// LoginResponse is the discriminated login outcome. Success embeds the
// session so its fields flatten into the envelope; MFA carries the ticket
// token and the methods that can answer it; Disabled carries the user id.
type LoginResponse struct {
	Result string `json:"result"`

	*session.Session `json:",omitempty"`

	Ticket         string       `json:"ticket,omitempty"`
	AllowedMethods []mfa.Method `json:"allowed_methods,omitempty"`

	UserID string `json:"user_id,omitempty"`
}

// Login authenticates by email and password. Unknown emails fail exactly like
// wrong passwords. Accounts with second factors receive an MFA ticket instead
// of a session; disabled accounts authenticate but get no session.
func (a *Auth) Login(ctx context.Context, emailAddr, passwd, friendlyName string) (*LoginResponse, error) {
	acc, err := a.store.FindAccountByNormalisedEmail(ctx, account.Normalise(emailAddr))
	if errors.Is(err, store.ErrNotFound) {
		return nil, autherr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, autherr.NewDatabaseError("find_one", "account")
	}

	if !acc.Verified() {
		return nil, autherr.ErrUnverifiedAccount
	}
	if err := a.accounts.VerifyPassword(ctx, acc, passwd); err != nil {
		return nil, err
	}

	return a.finishLogin(ctx, acc, friendlyName, true)
}

// CompleteMFALogin answers the challenge on a login-issued ticket and opens
// the session. The ticket is spent regardless of which method answered.
func (a *Auth) CompleteMFALogin(ctx context.Context, ticketToken string, resp mfa.Response, friendlyName string) (*LoginResponse, error) {
	ticket, acc, err := a.mfa.FindTicket(ctx, ticketToken)
	if err != nil {
		return nil, err
	}

	if _, err := a.mfa.ConsumeResponse(ctx, acc, ticket, resp); err != nil {
		return nil, err
	}
	if err := a.mfa.DeleteTicket(ctx, ticket); err != nil {
		return nil, err
	}

	return a.finishLogin(ctx, acc, friendlyName, false)
}

// VerifyEmailResponse is the outcome of redeeming a verification token. On a
// first verification Ticket carries an authorised MFA ticket token so the
// client can log in without re-entering the password.
type VerifyEmailResponse struct {
	Account *account.Account `json:"account"`
	Ticket  string           `json:"ticket,omitempty"`
}

// VerifyEmail redeems a verification token. Email moves complete silently;
// first verifications additionally mint an authorised login ticket.
func (a *Auth) VerifyEmail(ctx context.Context, verifyToken string) (*VerifyEmailResponse, error) {
	acc, wasPending, err := a.accounts.VerifyEmail(ctx, verifyToken)
	if err != nil {
		return nil, err
	}

	out := &VerifyEmailResponse{Account: acc}
	if wasPending {
		ticket, err := a.mfa.CreateTicket(ctx, acc.ID, true)
		if err != nil {
			return nil, err
		}
		out.Ticket = ticket.Token
	}
	return out, nil
}

// LoginWithTicket claims an authorised ticket and opens a session for its
// account. One shot: the ticket is deleted whether or not a session results.
func (a *Auth) LoginWithTicket(ctx context.Context, ticketToken, friendlyName string) (*LoginResponse, error) {
	ticket, acc, err := a.mfa.FindTicket(ctx, ticketToken)
	if err != nil {
		return nil, err
	}
	if err := a.mfa.ClaimTicket(ctx, ticket); err != nil {
		return nil, err
	}

	return a.finishLogin(ctx, acc, friendlyName, false)
}

// Authenticate resolves a session bearer token to its session and account.
// Unknown tokens, missing accounts, and disabled accounts all fail
// identically with InvalidSession.
func (a *Auth) Authenticate(ctx context.Context, bearer string) (*session.Session, *account.Account, error) {
	if bearer == "" {
		return nil, nil, autherr.ErrMissingHeaders
	}

	sess, err := a.store.FindSessionByToken(ctx, bearer)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, autherr.ErrInvalidSession
	}
	if err != nil {
		return nil, nil, autherr.NewDatabaseError("find_one", "session")
	}

	acc, err := a.store.FindAccount(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, autherr.ErrInvalidSession
	}
	if err != nil {
		return nil, nil, autherr.NewDatabaseError("find_one", "account")
	}
	if acc.Disabled {
		return nil, nil, autherr.ErrInvalidSession
	}
	return sess, acc, nil
}

// finishLogin turns an authenticated account into the login outcome. The MFA
// branch is only reachable from the password leg.
func (a *Auth) finishLogin(ctx context.Context, acc *account.Account, friendlyName string, allowMFA bool) (*LoginResponse, error) {
	if acc.Disabled {
		return &LoginResponse{Result: LoginDisabled, UserID: acc.ID}, nil
	}

	if allowMFA {
		if methods := a.mfa.SecondFactors(acc); len(methods) > 0 {
			ticket, err := a.mfa.CreateTicket(ctx, acc.ID, false)
			if err != nil {
				return nil, err
			}
			return &LoginResponse{
				Result:         LoginMFA,
				Ticket:         ticket.Token,
				AllowedMethods: methods,
			}, nil
		}
	}

	sess, err := a.sessions.Create(ctx, acc.ID, friendlyName)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Result: LoginSuccess, Session: sess}, nil
}
