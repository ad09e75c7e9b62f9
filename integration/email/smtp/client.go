package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/authifier/authifier/core/email"
)

// Client delivers mail over SMTP. Safe for concurrent use; every send opens
// its own connection.
type Client struct {
	cfg  Config
	auth smtp.Auth
}

// New validates the config and builds the client.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg:  cfg,
		auth: smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
	}, nil
}

// MustNew is New that panics on invalid config.
func MustNew(cfg Config) *Client {
	client, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// SendEmail implements email.Sender. Delivery failures wrap
// email.ErrFailedToSendEmail.
func (c *Client) SendEmail(ctx context.Context, params email.SendEmailParams) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(email.ErrFailedToSendEmail, err)
	}
	if err := params.Validate(); err != nil {
		return err
	}

	message := c.buildMessage(params)
	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	var err error
	switch c.cfg.TLSMode {
	case TLSModeTLS:
		err = c.sendTLS(addr, params.SendTo, message)
	case TLSModeStartTLS:
		err = c.sendStartTLS(addr, params.SendTo, message)
	case TLSModePlain:
		err = c.sendPlain(addr, params.SendTo, message)
	}
	if err != nil {
		return errors.Join(email.ErrFailedToSendEmail, err)
	}
	return nil
}

// buildMessage renders the MIME message. Headers are written in a fixed order
// so the output is reproducible.
func (c *Client) buildMessage(params email.SendEmailParams) []byte {
	messageID := fmt.Sprintf("<%d.%s@%s>",
		time.Now().UnixNano(),
		strings.ReplaceAll(params.Tag, " ", "_"),
		c.cfg.Host)

	var b strings.Builder
	writeHeader := func(key, value string) {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}
	writeHeader("From", c.cfg.SenderEmail)
	writeHeader("To", params.SendTo)
	writeHeader("Reply-To", c.cfg.SupportEmail)
	writeHeader("Subject", params.Subject)
	writeHeader("Date", time.Now().Format(time.RFC1123Z))
	writeHeader("Message-ID", messageID)
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", `text/html; charset="UTF-8"`)
	b.WriteString("\r\n")
	b.WriteString(params.BodyHTML)

	return []byte(b.String())
}

func (c *Client) sendTLS(addr, recipient string, message []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: c.cfg.Host})
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server with TLS: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	return c.transact(client, recipient, message)
}

func (c *Client) sendStartTLS(addr, recipient string, message []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: c.cfg.Host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}
	return c.transact(client, recipient, message)
}

func (c *Client) sendPlain(addr, recipient string, message []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	return c.transact(client, recipient, message)
}

func (c *Client) transact(client *smtp.Client, recipient string, message []byte) error {
	if err := client.Auth(c.auth); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	if err := client.Mail(c.cfg.SenderEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := writer.Write(message); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	// Some servers drop the connection right after DATA; the message is
	// already accepted at that point.
	_ = client.Quit()
	return nil
}
