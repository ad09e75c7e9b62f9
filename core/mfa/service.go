package mfa

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/authifier/authifier/core/account"
	"github.com/authifier/authifier/core/autherr"
	"github.com/authifier/authifier/core/logger"
	"github.com/authifier/authifier/core/store"
	"github.com/authifier/authifier/pkg/token"
	"github.com/authifier/authifier/pkg/totp"
)

// ticketTokenLength is the size of the ticket bearer token in characters.
const ticketTokenLength = 64

// recoveryCodeCount is how many codes a generation run produces.
const recoveryCodeCount = 10

// Method names an MFA method available to an account.
type Method string

const (
	MethodPassword Method = "Password"
	MethodRecovery Method = "Recovery"
	MethodTotp     Method = "Totp"
)

// Response is a client's answer to an MFA challenge. Exactly one field is
// expected to be set.
type Response struct {
	Password     string `json:"password,omitempty"`
	RecoveryCode string `json:"recovery_code,omitempty"`
	TotpCode     string `json:"totp_code,omitempty"`
}

// PasswordVerifier checks a password attempt against an account, driving the
// lockout table. Implemented by account.Service.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, acc *account.Account, attempt string) error
}

// Service issues and validates MFA tickets and manages TOTP enrollment and
// recovery codes.
type Service struct {
	store     Store
	accounts  account.Store
	passwords PasswordVerifier
	issuer    string
	log       *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithIssuer sets the application name used in TOTP provisioning URIs.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithLogger sets the structured logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates the MFA service.
func New(st Store, accounts account.Store, passwords PasswordVerifier, opts ...Option) *Service {
	s := &Service{
		store:     st,
		accounts:  accounts,
		passwords: passwords,
		issuer:    "Authifier",
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AllowedMethods returns every method the account can answer a challenge
// with. Password is always present while a password is set.
func (s *Service) AllowedMethods(acc *account.Account) []Method {
	methods := make([]Method, 0, 3)
	if acc.PasswordHash != "" {
		methods = append(methods, MethodPassword)
	}
	if len(acc.MFA.RecoveryCodes) > 0 {
		methods = append(methods, MethodRecovery)
	}
	if acc.MFA.Totp.Status == account.TotpEnabled {
		methods = append(methods, MethodTotp)
	}
	return methods
}

// SecondFactors returns the methods usable for the second leg of a login.
// Empty means the account has no MFA and logs in with password alone.
func (s *Service) SecondFactors(acc *account.Account) []Method {
	methods := make([]Method, 0, 2)
	if len(acc.MFA.RecoveryCodes) > 0 {
		methods = append(methods, MethodRecovery)
	}
	if acc.MFA.Totp.Status == account.TotpEnabled {
		methods = append(methods, MethodTotp)
	}
	return methods
}

// CreateTicket mints a fresh unvalidated ticket for the account.
func (s *Service) CreateTicket(ctx context.Context, accountID string, authorised bool) (*Ticket, error) {
	bearer, err := token.Secure(ticketTokenLength)
	if err != nil {
		return nil, autherr.ErrInternalError
	}
	ticket := &Ticket{
		ID:         ulid.Make().String(),
		AccountID:  accountID,
		Token:      bearer,
		Authorised: authorised,
	}
	if err := s.store.SaveTicket(ctx, ticket); err != nil {
		return nil, autherr.NewDatabaseError("save", "mfa_ticket")
	}
	return ticket, nil
}

// FindTicket resolves a ticket token. Expired or unknown tokens fail with
// InvalidToken; the account the ticket belongs to is returned alongside.
func (s *Service) FindTicket(ctx context.Context, bearer string) (*Ticket, *account.Account, error) {
	ticket, err := s.store.FindTicketByToken(ctx, bearer)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, autherr.ErrInvalidToken
	}
	if err != nil {
		return nil, nil, autherr.NewDatabaseError("find_one", "mfa_ticket")
	}

	acc, err := s.accounts.FindAccount(ctx, ticket.AccountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, autherr.ErrInvalidToken
	}
	if err != nil {
		return nil, nil, autherr.NewDatabaseError("find_one", "account")
	}
	return ticket, acc, nil
}

// ConsumeResponse validates an MFA response against the account and marks the
// ticket validated. When ticket is nil a fresh one is minted, so a validated
// ticket can be produced in a single exchange.
func (s *Service) ConsumeResponse(ctx context.Context, acc *account.Account, ticket *Ticket, resp Response) (*Ticket, error) {
	method, err := methodOf(resp)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(s.AllowedMethods(acc), method) {
		return nil, autherr.ErrDisallowedMFAMethod
	}

	var lastTotpCode string
	switch method {
	case MethodPassword:
		if err := s.passwords.VerifyPassword(ctx, acc, resp.Password); err != nil {
			return nil, err
		}

	case MethodRecovery:
		i := slices.Index(acc.MFA.RecoveryCodes, resp.RecoveryCode)
		if i < 0 {
			return nil, autherr.ErrInvalidCredentials
		}
		// Match-and-remove: a recovery code is spent on use.
		acc.MFA.RecoveryCodes = slices.Delete(acc.MFA.RecoveryCodes, i, i+1)
		if err := s.accounts.SaveAccount(ctx, acc); err != nil {
			return nil, autherr.NewDatabaseError("save", "account")
		}

	case MethodTotp:
		replay := ticket != nil && ticket.LastTotpCode != "" && resp.TotpCode == ticket.LastTotpCode
		if !replay && !totp.Validate(acc.MFA.Totp.Secret, resp.TotpCode) {
			return nil, autherr.ErrInvalidToken
		}
		lastTotpCode = resp.TotpCode
	}

	if ticket == nil {
		bearer, err := token.Secure(ticketTokenLength)
		if err != nil {
			return nil, autherr.ErrInternalError
		}
		ticket = &Ticket{
			ID:        ulid.Make().String(),
			AccountID: acc.ID,
			Token:     bearer,
		}
	}
	ticket.Validated = true
	if lastTotpCode != "" {
		ticket.LastTotpCode = lastTotpCode
	}
	if err := s.store.SaveTicket(ctx, ticket); err != nil {
		return nil, autherr.NewDatabaseError("save", "mfa_ticket")
	}

	s.log.InfoContext(ctx, "mfa response accepted",
		logger.AccountID(acc.ID), logger.TicketID(ticket.ID))
	return ticket, nil
}

// ClaimTicket consumes an authorised ticket: one shot, deleted on use. Any
// failure is indistinguishable from an unknown token.
func (s *Service) ClaimTicket(ctx context.Context, ticket *Ticket) error {
	if !ticket.Authorised || ticket.Expired(time.Now()) {
		return autherr.ErrInvalidToken
	}
	if err := s.store.DeleteTicket(ctx, ticket.ID); err != nil {
		return autherr.ErrInvalidToken
	}
	return nil
}

// DeleteTicket removes a spent ticket.
func (s *Service) DeleteTicket(ctx context.Context, ticket *Ticket) error {
	if err := s.store.DeleteTicket(ctx, ticket.ID); err != nil {
		return autherr.NewDatabaseError("delete", "mfa_ticket")
	}
	return nil
}

// GenerateTOTPSecret starts TOTP enrollment: a fresh secret is stored as
// Pending and returned for the client to load into an authenticator app.
func (s *Service) GenerateTOTPSecret(ctx context.Context, acc *account.Account) (string, error) {
	if acc.MFA.Totp.Status == account.TotpEnabled {
		return "", autherr.ErrTotpAlreadyEnabled
	}

	secret, err := totp.GenerateSecret()
	if err != nil {
		return "", autherr.ErrOperationFailed
	}
	acc.MFA.Totp = account.Totp{Status: account.TotpPending, Secret: secret}

	if err := s.accounts.SaveAccount(ctx, acc); err != nil {
		return "", autherr.NewDatabaseError("save", "account")
	}
	return secret, nil
}

// ProvisioningURI returns the otpauth:// URI for the account's pending or
// enabled secret, or empty when TOTP is disabled.
func (s *Service) ProvisioningURI(acc *account.Account) string {
	if acc.MFA.Totp.Status == account.TotpDisabled {
		return ""
	}
	return totp.ProvisioningURI(acc.MFA.Totp.Secret, acc.Email, s.issuer)
}

// ProvisioningQR renders the provisioning URI as a PNG for enrollment
// screens, or nil when TOTP is disabled.
func (s *Service) ProvisioningQR(acc *account.Account, size int) ([]byte, error) {
	uri := s.ProvisioningURI(acc)
	if uri == "" {
		return nil, autherr.ErrOperationFailed
	}
	png, err := totp.QRCodePNG(uri, size)
	if err != nil {
		return nil, autherr.ErrOperationFailed
	}
	return png, nil
}

// EnableTOTP promotes a pending secret to Enabled, requiring a valid code
// over that secret as proof of enrollment.
func (s *Service) EnableTOTP(ctx context.Context, acc *account.Account, code string) error {
	if acc.MFA.Totp.Status != account.TotpPending {
		return autherr.ErrOperationFailed
	}
	if !totp.Validate(acc.MFA.Totp.Secret, code) {
		return autherr.ErrInvalidToken
	}

	acc.MFA.Totp.Status = account.TotpEnabled
	if err := s.accounts.SaveAccount(ctx, acc); err != nil {
		return autherr.NewDatabaseError("save", "account")
	}
	s.log.InfoContext(ctx, "totp enabled", logger.AccountID(acc.ID))
	return nil
}

// DisableTOTP turns TOTP off and discards the secret.
func (s *Service) DisableTOTP(ctx context.Context, acc *account.Account) error {
	acc.MFA.Totp = account.Totp{Status: account.TotpDisabled}
	if err := s.accounts.SaveAccount(ctx, acc); err != nil {
		return autherr.NewDatabaseError("save", "account")
	}
	return nil
}

// GenerateRecoveryCodes replaces the account's recovery codes with ten fresh
// ones and returns them. Codes are stored as issued; each is spent on use.
func (s *Service) GenerateRecoveryCodes(ctx context.Context, acc *account.Account) ([]string, error) {
	codes := make([]string, 0, recoveryCodeCount)
	for i := 0; i < recoveryCodeCount; i++ {
		code, err := token.Recovery()
		if err != nil {
			return nil, autherr.ErrOperationFailed
		}
		codes = append(codes, code)
	}

	acc.MFA.RecoveryCodes = codes
	if err := s.accounts.SaveAccount(ctx, acc); err != nil {
		return nil, autherr.NewDatabaseError("save", "account")
	}
	return codes, nil
}

// methodOf maps a response to the single method it answers with.
func methodOf(resp Response) (Method, error) {
	switch {
	case resp.Password != "":
		return MethodPassword, nil
	case resp.RecoveryCode != "":
		return MethodRecovery, nil
	case resp.TotpCode != "":
		return MethodTotp, nil
	default:
		return "", autherr.ErrDisallowedMFAMethod
	}
}
