package postmark

import (
	"fmt"
	"net/mail"

	"github.com/authifier/authifier/core/email"
)

// Config holds the Postmark API credentials and the sender identities stamped
// on every outbound message.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN,required"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN,required"`
	SenderEmail          string `env:"POSTMARK_SENDER_EMAIL,required"`
	SupportEmail         string `env:"POSTMARK_SUPPORT_EMAIL,required"`
}

// Validate reports the first configuration problem, wrapped in
// email.ErrInvalidConfig.
func (c Config) Validate() error {
	if c.PostmarkServerToken == "" {
		return fmt.Errorf("%w: PostmarkServerToken is required", email.ErrInvalidConfig)
	}
	if c.PostmarkAccountToken == "" {
		return fmt.Errorf("%w: PostmarkAccountToken is required", email.ErrInvalidConfig)
	}
	if _, err := mail.ParseAddress(c.SenderEmail); err != nil {
		return fmt.Errorf("%w: SenderEmail must be a valid email address", email.ErrInvalidConfig)
	}
	if _, err := mail.ParseAddress(c.SupportEmail); err != nil {
		return fmt.Errorf("%w: SupportEmail must be a valid email address", email.ErrInvalidConfig)
	}
	return nil
}
