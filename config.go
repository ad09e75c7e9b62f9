package authifier

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the engine's behavioural settings. Zero values are tuned for
// production via envDefault tags; programmatic construction is equally valid
// for embedding.
type Config struct {
	// EmailVerification gates registration behind a verification email.
	// When false, new accounts start verified.
	EmailVerification bool `env:"AUTH_EMAIL_VERIFICATION" envDefault:"true"`

	// InviteOnly requires a valid unused invite code at registration.
	InviteOnly bool `env:"AUTH_INVITE_ONLY" envDefault:"false"`

	// Token lifetimes for the account state machines.
	VerificationExpiry    time.Duration `env:"AUTH_VERIFICATION_EXPIRY" envDefault:"24h"`
	PasswordResetExpiry   time.Duration `env:"AUTH_PASSWORD_RESET_EXPIRY" envDefault:"1h"`
	AccountDeletionExpiry time.Duration `env:"AUTH_ACCOUNT_DELETION_EXPIRY" envDefault:"24h"`

	// DeletionGracePeriod is how long a confirmed deletion stays reversible
	// before the host's deletion worker may destroy the account.
	DeletionGracePeriod time.Duration `env:"AUTH_DELETION_GRACE_PERIOD" envDefault:"168h"`

	// LogoutOnPasswordReset revokes every session when a reset completes.
	LogoutOnPasswordReset bool `env:"AUTH_LOGOUT_ON_PASSWORD_RESET" envDefault:"true"`

	// SupportEmail is surfaced in the Blacklisted error body.
	SupportEmail string `env:"AUTH_SUPPORT_EMAIL" envDefault:"support@example.com"`

	// Issuer names the application in TOTP provisioning URIs.
	Issuer string `env:"AUTH_ISSUER" envDefault:"Authifier"`

	// Mail templates. Each URL is suffixed with the corresponding token.
	VerifyURL   string `env:"AUTH_VERIFY_URL" envDefault:"http://localhost/verify/"`
	ResetURL    string `env:"AUTH_RESET_URL" envDefault:"http://localhost/reset/"`
	DeletionURL string `env:"AUTH_DELETION_URL" envDefault:"http://localhost/delete/"`
}

// LoadConfig reads Config from the environment. An optional .env file path
// list is loaded first; missing files are not an error so production
// deployments can rely on the process environment alone.
func LoadConfig(dotenvFiles ...string) (Config, error) {
	_ = godotenv.Load(dotenvFiles...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config from environment: %w", err)
	}
	return cfg, nil
}

// MustLoadConfig is LoadConfig that panics on failure. Follows the pattern of
// failing fast during initialization rather than starting broken.
func MustLoadConfig(dotenvFiles ...string) Config {
	cfg, err := LoadConfig(dotenvFiles...)
	if err != nil {
		panic(err)
	}
	return cfg
}
