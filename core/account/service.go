package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/authifier/authifier/core/autherr"
	"github.com/authifier/authifier/core/email"
	"github.com/authifier/authifier/core/event"
	"github.com/authifier/authifier/core/logger"
	"github.com/authifier/authifier/core/store"
	"github.com/authifier/authifier/pkg/password"
	"github.com/authifier/authifier/pkg/token"
)

// verificationTokenLength matches the original single-use token size.
const verificationTokenLength = 32

// Config holds the account service settings, a subset of the engine config.
type Config struct {
	EmailVerification     bool
	InviteOnly            bool
	VerificationExpiry    time.Duration
	PasswordResetExpiry   time.Duration
	AccountDeletionExpiry time.Duration
	DeletionGracePeriod   time.Duration
	LogoutOnPasswordReset bool

	// Mail link bases; each is suffixed with the raw token.
	VerifyURL   string
	ResetURL    string
	DeletionURL string
}

// PasswordChecker validates a candidate password against the configured
// policy. Implemented by policy.Engine.
type PasswordChecker interface {
	CheckPassword(ctx context.Context, password string) error
}

// SessionRevoker cascades session deletion when an account is disabled,
// scheduled for deletion, or completes a password reset.
// Implemented by session.Service.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID string, exceptSessionID string) error
}

// Service drives the account state machines.
type Service struct {
	store     Store
	cfg       Config
	mailer    email.Sender
	events    event.Emitter
	passwords PasswordChecker
	sessions  SessionRevoker
	log       *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithMailer sets the transport for verification, reset, and deletion mail.
// Without a mailer those operations still mutate state but send nothing,
// which is useful in tests.
func WithMailer(m email.Sender) Option {
	return func(s *Service) { s.mailer = m }
}

// WithEvents sets the lifecycle event emitter.
func WithEvents(e event.Emitter) Option {
	return func(s *Service) { s.events = e }
}

// WithPasswordChecker sets the policy check applied to new passwords on reset.
func WithPasswordChecker(c PasswordChecker) Option {
	return func(s *Service) { s.passwords = c }
}

// WithSessionRevoker sets the cascade used by Disable, ConfirmDeletion, and
// password reset.
func WithSessionRevoker(r SessionRevoker) Option {
	return func(s *Service) { s.sessions = r }
}

// WithLogger sets the structured logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates the account service.
func New(st Store, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:  st,
		cfg:    cfg,
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

// RegisterInput carries the registration request after policy checks.
type RegisterInput struct {
	Email    string
	Password string
	Invite   string
}

// Register creates a new account. The caller is expected to have run the
// policy checks (captcha, shield, email, password) beforehand.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	var invite *Invite
	if s.cfg.InviteOnly {
		if in.Invite == "" {
			return nil, autherr.ErrMissingInvite
		}
		found, err := s.store.FindInvite(ctx, in.Invite)
		if errors.Is(err, store.ErrNotFound) {
			return nil, autherr.ErrInvalidInvite
		}
		if err != nil {
			return nil, autherr.NewDatabaseError("find_one", "invite")
		}
		if found.Used {
			return nil, autherr.ErrInvalidInvite
		}
		invite = found
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, autherr.ErrInternalError
	}

	acc := &Account{
		ID:              ulid.Make().String(),
		Email:           in.Email,
		EmailNormalised: Normalise(in.Email),
		PasswordHash:    hash,
		Verification:    Verification{Status: VerificationVerified},
	}
	if s.cfg.EmailVerification {
		verifyToken, err := token.Secure(verificationTokenLength)
		if err != nil {
			return nil, autherr.ErrInternalError
		}
		acc.Verification = Verification{
			Status: VerificationPending,
			Token:  verifyToken,
			Expiry: time.Now().Add(s.cfg.VerificationExpiry),
		}
	}

	if err := s.store.SaveAccount(ctx, acc); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, autherr.ErrEmailInUse
		}
		return nil, autherr.NewDatabaseError("save", "account")
	}

	if s.cfg.EmailVerification {
		if err := s.sendVerifyEmail(ctx, acc.Email, acc.Verification.Token); err != nil {
			return nil, err
		}
	}

	if invite != nil {
		invite.Used = true
		invite.ClaimedBy = acc.ID
		if err := s.store.SaveInvite(ctx, invite); err != nil {
			return nil, autherr.NewDatabaseError("save", "invite")
		}
	}

	s.events.Emit(ctx, event.AccountCreated{AccountID: acc.ID, Email: acc.Email})
	s.log.InfoContext(ctx, "account registered", logger.AccountID(acc.ID))
	return acc, nil
}

// VerifyEmail consumes a verification token. It returns the account and
// whether the prior state was Pending: a first verification lets the caller
// issue an authorised login ticket, a confirmed move does not.
func (s *Service) VerifyEmail(ctx context.Context, verifyToken string) (*Account, bool, error) {
	acc, err := s.store.FindAccountWithEmailVerification(ctx, verifyToken)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, autherr.ErrInvalidToken
	}
	if err != nil {
		return nil, false, autherr.NewDatabaseError("find_one", "account")
	}

	wasPending := acc.Verification.Status == VerificationPending
	if acc.Verification.Status == VerificationMoving {
		acc.Email = acc.Verification.NewEmail
		acc.EmailNormalised = Normalise(acc.Email)
	}
	acc.Verification = Verification{Status: VerificationVerified}

	if err := s.store.SaveAccount(ctx, acc); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, false, autherr.ErrEmailInUse
		}
		return nil, false, autherr.NewDatabaseError("save", "account")
	}

	s.log.InfoContext(ctx, "email verified", logger.AccountID(acc.ID))
	return acc, wasPending, nil
}

// ResendVerification re-issues the verification token. It silently succeeds
// when the email is unknown or already verified, so callers cannot probe for
// registered addresses.
func (s *Service) ResendVerification(ctx context.Context, emailAddr string) error {
	acc, err := s.store.FindAccountByNormalisedEmail(ctx, Normalise(emailAddr))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return autherr.NewDatabaseError("find_one", "account")
	}

	if acc.Verification.Status == VerificationVerified {
		return nil
	}

	verifyToken, err := token.Secure(verificationTokenLength)
	if err != nil {
		return autherr.ErrInternalError
	}
	acc.Verification.Token = verifyToken
	acc.Verification.Expiry = time.Now().Add(s.cfg.VerificationExpiry)

	if err := s.store.SaveAccount(ctx, acc); err != nil {
		return autherr.NewDatabaseError("save", "account")
	}

	sendTo := acc.Email
	if acc.Verification.Status == VerificationMoving {
		sendTo = acc.Verification.NewEmail
	}
	return s.sendVerifyEmail(ctx, sendTo, verifyToken)
}

// StartEmailMove begins moving a verified account to a new address. The old
// address stays active until the new one confirms.
func (s *Service) StartEmailMove(ctx context.Context, acc *Account, newEmail string) error {
	verifyToken, err := token.Secure(verificationTokenLength)
	if err != nil {
		return autherr.ErrInternalError
	}
	acc.Verification = Verification{
		Status:   VerificationMoving,
		Token:    verifyToken,
		Expiry:   time.Now().Add(s.cfg.VerificationExpiry),
		NewEmail: newEmail,
	}

	if err := s.store.SaveAccount(ctx, acc); err != nil {
		return autherr.NewDatabaseError("save", "account")
	}
	return s.sendVerifyEmail(ctx, newEmail, verifyToken)
}

// StartPasswordReset issues a reset token. Silently succeeds for unknown
// addresses (enumeration-safe).
func (s *Service) StartPasswordReset(ctx context.Context, emailAddr string) error {
	acc, err := s.store.FindAccountByNormalisedEmail(ctx, Normalise(emailAddr))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return autherr.NewDatabaseError("find_one", "account")
	}

	resetToken, err := token.Secure(verificationTokenLength)
	if err != nil {
		return autherr.ErrInternalError
	}
	acc.PasswordReset = &PasswordReset{
		Token:  resetToken,
		Expiry: time.Now().Add(s.cfg.PasswordResetExpiry),
	}

	if err := s.store.SaveAccount(ctx, acc); err != nil {
		return autherr.NewDatabaseError("save", "account")
	}
	return s.sendMail(ctx, email.SendEmailParams{
		SendTo:   acc.Email,
		Subject:  "Reset your password",
		BodyHTML: fmt.Sprintf(`<p>Click the link below to set a new password.</p><p><a href="%s%s">Reset password</a></p>`, s.cfg.ResetURL, resetToken),
		Tag:      "reset_password",
	})
}

// CompletePasswordReset consumes a reset token and installs the new password.
// The new password runs through the configured policy, the lockout counter is
// cleared, and (when configured) every session is revoked.
func (s *Service) CompletePasswordReset(ctx context.Context, resetToken, newPassword string) (*Account, error) {
	acc, err := s.store.FindAccountWithPasswordReset(ctx, resetToken)
	if errors.Is(err, store.ErrNotFound) {
		return nil, autherr.ErrInvalidToken
	}
	if err != nil {
		return nil, autherr.NewDatabaseError("find_one", "account")
	}

	if s.passwords != nil {
		if err := s.passwords.CheckPassword(ctx, newPassword); err != nil {
			return nil, err
		}
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return nil, autherr.ErrInternalError
	}
	acc.PasswordHash = hash
	acc.PasswordReset = nil
	acc.Lockout = nil

	if err := s.store.SaveAccount(ctx, acc); err != nil {
		return nil, autherr.NewDatabaseError("save", "account")
	}

	if s.cfg.LogoutOnPasswordReset && s.sessions != nil {
		if err := s.sessions.RevokeAll(ctx, acc.ID, ""); err != nil {
			return nil, err
		}
	}

	s.log.InfoContext(ctx, "password reset completed", logger.AccountID(acc.ID))
	return acc, nil
}

// StartAccountDeletion begins the deletion state machine. The HTTP layer
// gates this behind a validated MFA ticket.
func (s *Service) StartAccountDeletion(ctx context.Context, acc *Account) error {
	deleteToken, err := token.Secure(verificationTokenLength)
	if err != nil {
		return autherr.ErrInternalError
	}
	acc.Deletion = &Deletion{
		Status: DeletionWaitingForVerification,
		Token:  deleteToken,
		Expiry: time.Now().Add(s.cfg.AccountDeletionExpiry),
	}

	if err := s.store.SaveAccount(ctx, acc); err != nil {
		return autherr.NewDatabaseError("save", "account")
	}
	return s.sendMail(ctx, email.SendEmailParams{
		SendTo:   acc.Email,
		Subject:  "Confirm account deletion",
		BodyHTML: fmt.Sprintf(`<p>Click the link below to confirm deletion of your account.</p><p><a href="%s%s">Delete account</a></p>`, s.cfg.DeletionURL, deleteToken),
		Tag:      "delete_account",
	})
}

// ConfirmDeletion consumes a deletion token and schedules the account for
// destruction after the grace period. All sessions are revoked immediately.
func (s *Service) ConfirmDeletion(ctx context.Context, deleteToken string) (*Account, error) {
	acc, err := s.store.FindAccountWithDeletionToken(ctx, deleteToken)
	if errors.Is(err, store.ErrNotFound) {
		return nil, autherr.ErrInvalidToken
	}
	if err != nil {
		return nil, autherr.NewDatabaseError("find_one", "account")
	}

	acc.Deletion = &Deletion{
		Status: DeletionScheduled,
		After:  time.Now().Add(s.cfg.DeletionGracePeriod),
	}
	acc.Disabled = true

	if err := s.store.SaveAccount(ctx, acc); err != nil {
		return nil, autherr.NewDatabaseError("save", "account")
	}

	if s.sessions != nil {
		if err := s.sessions.RevokeAll(ctx, acc.ID, ""); err != nil {
			return nil, err
		}
	}

	s.log.InfoContext(ctx, "account deletion scheduled", logger.AccountID(acc.ID))
	return acc, nil
}

// Disable turns off the account and revokes every session. The HTTP layer
// gates this behind a validated MFA ticket.
func (s *Service) Disable(ctx context.Context, acc *Account) error {
	acc.Disabled = true
	if err := s.store.SaveAccount(ctx, acc); err != nil {
		return autherr.NewDatabaseError("save", "account")
	}

	if s.sessions != nil {
		if err := s.sessions.RevokeAll(ctx, acc.ID, ""); err != nil {
			return err
		}
	}

	s.log.InfoContext(ctx, "account disabled", logger.AccountID(acc.ID))
	return nil
}

// VerifyPassword checks a password attempt against the account, driving the
// lockout table. A failed attempt increments the counter and may arm a lock;
// a successful attempt clears it. While a lock is armed the password is not
// even checked.
func (s *Service) VerifyPassword(ctx context.Context, acc *Account, attempt string) error {
	now := time.Now()
	if acc.Lockout.Active(now) {
		return autherr.ErrLockedOut
	}

	if err := password.Verify(acc.PasswordHash, attempt); err != nil {
		if acc.Lockout == nil {
			acc.Lockout = &Lockout{}
		}
		acc.Lockout.Attempts++
		acc.Lockout.Expiry = lockoutExpiry(acc.Lockout.Attempts, now)

		if err := s.store.SaveAccount(ctx, acc); err != nil {
			return autherr.NewDatabaseError("save", "account")
		}
		return autherr.ErrInvalidCredentials
	}

	if acc.Lockout != nil {
		acc.Lockout = nil
		if err := s.store.SaveAccount(ctx, acc); err != nil {
			return autherr.NewDatabaseError("save", "account")
		}
	}
	return nil
}

// lockoutExpiry implements the escalation table: attempts 1-2 arm no lock,
// 3 locks for 60s, 4 for 300s, 5+ for 3600s.
func lockoutExpiry(attempts int, now time.Time) *time.Time {
	var d time.Duration
	switch {
	case attempts <= 2:
		return nil
	case attempts == 3:
		d = time.Minute
	case attempts == 4:
		d = 5 * time.Minute
	default:
		d = time.Hour
	}
	t := now.Add(d)
	return &t
}

func (s *Service) sendVerifyEmail(ctx context.Context, sendTo, verifyToken string) error {
	return s.sendMail(ctx, email.SendEmailParams{
		SendTo:   sendTo,
		Subject:  "Verify your email",
		BodyHTML: fmt.Sprintf(`<p>Click the link below to verify your email address.</p><p><a href="%s%s">Verify email</a></p>`, s.cfg.VerifyURL, verifyToken),
		Tag:      "verify_email",
	})
}

func (s *Service) sendMail(ctx context.Context, params email.SendEmailParams) error {
	if s.mailer == nil {
		return nil
	}
	if err := s.mailer.SendEmail(ctx, params); err != nil {
		s.log.ErrorContext(ctx, "failed to send email", logger.Error(err))
		return autherr.ErrEmailFailed
	}
	return nil
}
