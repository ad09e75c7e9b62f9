// Package policy gates registration and credential changes: email syntax and
// disposable-domain blocking, password strength, captcha verification, and
// shield risk scoring. Each check is independently configurable; a disabled
// check always passes.
package policy

import (
	"io"
	"log/slog"
	"net/http"
	"time"
)

// BlocklistMode selects the email domain blocklist source.
type BlocklistMode string

const (
	// BlocklistDisabled turns domain blocking off.
	BlocklistDisabled BlocklistMode = "disabled"
	// BlocklistCustom checks against a caller-supplied domain list.
	BlocklistCustom BlocklistMode = "custom"
	// BlocklistBundled checks against the embedded disposable-domain list.
	BlocklistBundled BlocklistMode = "bundled"
)

// PasswordMode selects the compromised-password check.
type PasswordMode string

const (
	// PasswordNone applies only the minimum length rule.
	PasswordNone PasswordMode = "none"
	// PasswordCustom checks against a caller-supplied password list.
	PasswordCustom PasswordMode = "custom"
	// PasswordBundled checks against the embedded common-password list.
	PasswordBundled PasswordMode = "bundled"
	// PasswordHIBP queries a haveibeenpwned-compatible range endpoint.
	PasswordHIBP PasswordMode = "hibp"
)

// Default external endpoints.
const (
	DefaultHCaptchaEndpoint = "https://hcaptcha.com/siteverify"
	DefaultHIBPEndpoint     = "https://api.pwnedpasswords.com/range"
)

// MinPasswordLength is enforced regardless of PasswordMode.
const MinPasswordLength = 8

// Config selects and parameterises the checks.
type Config struct {
	// Blocklist controls email domain blocking.
	Blocklist       BlocklistMode `env:"POLICY_BLOCKLIST" envDefault:"bundled"`
	BlocklistCustom []string      `env:"POLICY_BLOCKLIST_CUSTOM" envSeparator:","`

	// Password controls the compromised-password check.
	Password       PasswordMode `env:"POLICY_PASSWORD" envDefault:"bundled"`
	PasswordCustom []string     `env:"POLICY_PASSWORD_CUSTOM" envSeparator:","`
	HIBPEndpoint   string       `env:"POLICY_HIBP_ENDPOINT" envDefault:"https://api.pwnedpasswords.com/range"`

	// HCaptchaSecret enables captcha verification when non-empty.
	HCaptchaSecret   string `env:"POLICY_HCAPTCHA_SECRET"`
	HCaptchaEndpoint string `env:"POLICY_HCAPTCHA_ENDPOINT" envDefault:"https://hcaptcha.com/siteverify"`

	// ShieldAPIKey enables shield risk scoring when non-empty. Strict mode
	// rejects registrations when shield itself is unreachable.
	ShieldAPIKey   string `env:"POLICY_SHIELD_API_KEY"`
	ShieldStrict   bool   `env:"POLICY_SHIELD_STRICT" envDefault:"false"`
	ShieldEndpoint string `env:"POLICY_SHIELD_ENDPOINT" envDefault:"https://shield.authifier.com/api/validate"`

	// SupportEmail is surfaced in blocked-domain rejections.
	SupportEmail string `env:"POLICY_SUPPORT_EMAIL"`
}

// Engine runs the configured checks.
type Engine struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger

	customDomains   []string
	customPasswords []string
}

// Option configures the Engine.
type Option func(*Engine)

// WithHTTPClient replaces the HTTP client used for captcha, shield, and HIBP
// calls. Default has a 10 second timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		if c != nil {
			e.client = c
		}
	}
}

// WithLogger sets the structured logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New creates the policy engine. Custom lists from cfg are normalised and
// sorted once, up front.
func New(cfg Config, opts ...Option) *Engine {
	if cfg.HCaptchaEndpoint == "" {
		cfg.HCaptchaEndpoint = DefaultHCaptchaEndpoint
	}
	if cfg.HIBPEndpoint == "" {
		cfg.HIBPEndpoint = DefaultHIBPEndpoint
	}
	e := &Engine{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.customDomains = sortedLower(cfg.BlocklistCustom)
	e.customPasswords = sortedLower(cfg.PasswordCustom)
	return e
}
