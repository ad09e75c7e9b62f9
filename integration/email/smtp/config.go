package smtp

import (
	"fmt"
	"net/mail"

	"github.com/authifier/authifier/core/email"
)

// TLS modes for the server connection.
const (
	TLSModeStartTLS = "starttls"
	TLSModeTLS      = "tls"
	TLSModePlain    = "plain"
)

// Config holds the SMTP server settings and the sender identities stamped on
// every outbound message.
type Config struct {
	Host         string `env:"SMTP_HOST,required"`
	Port         int    `env:"SMTP_PORT" envDefault:"587"`
	Username     string `env:"SMTP_USERNAME,required"`
	Password     string `env:"SMTP_PASSWORD,required"`
	TLSMode      string `env:"SMTP_TLS_MODE" envDefault:"starttls"`
	SenderEmail  string `env:"SMTP_SENDER_EMAIL,required"`
	SupportEmail string `env:"SMTP_SUPPORT_EMAIL,required"`
}

// Validate reports the first configuration problem, wrapped in
// email.ErrInvalidConfig.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: Host is required", email.ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: Port must be between 1 and 65535", email.ErrInvalidConfig)
	}
	if c.Username == "" {
		return fmt.Errorf("%w: Username is required", email.ErrInvalidConfig)
	}
	if c.Password == "" {
		return fmt.Errorf("%w: Password is required", email.ErrInvalidConfig)
	}
	switch c.TLSMode {
	case TLSModeStartTLS, TLSModeTLS, TLSModePlain:
	default:
		return fmt.Errorf("%w: TLSMode must be starttls, tls, or plain", email.ErrInvalidConfig)
	}
	if _, err := mail.ParseAddress(c.SenderEmail); err != nil {
		return fmt.Errorf("%w: SenderEmail must be a valid email address", email.ErrInvalidConfig)
	}
	if _, err := mail.ParseAddress(c.SupportEmail); err != nil {
		return fmt.Errorf("%w: SupportEmail must be a valid email address", email.ErrInvalidConfig)
	}
	return nil
}
