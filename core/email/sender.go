// Package email defines the Mailer abstraction the engine sends verification,
// password-reset, and deletion mail through. Transport and template rendering
// live behind the interface; integrations provide SMTP and Postmark senders,
// and DevSender writes mail to disk for local development.
package email

import (
	"context"
	"fmt"
	"net/mail"
)

// Sender delivers a single transactional email.
type Sender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams describes one outgoing message.
type SendEmailParams struct {
	SendTo   string // recipient address
	Subject  string
	BodyHTML string
	Tag      string // machine tag for tracking (e.g. "verify_email")
}

// Validate checks the parameters before handing them to a transport.
func (p SendEmailParams) Validate() error {
	if p.SendTo == "" {
		return fmt.Errorf("%w: SendTo is required", ErrInvalidParams)
	}
	if _, err := mail.ParseAddress(p.SendTo); err != nil {
		return fmt.Errorf("%w: SendTo must be a valid email address", ErrInvalidParams)
	}
	if p.Subject == "" {
		return fmt.Errorf("%w: Subject is required", ErrInvalidParams)
	}
	if p.BodyHTML == "" {
		return fmt.Errorf("%w: BodyHTML is required", ErrInvalidParams)
	}
	return nil
}
