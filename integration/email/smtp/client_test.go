package smtp_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authifier/authifier/core/email"
	"github.com/authifier/authifier/integration/email/smtp"
)

func validConfig() smtp.Config {
	return smtp.Config{
		Host:         "smtp.example.com",
		Port:         587,
		Username:     "user@example.com",
		Password:     "password",
		TLSMode:      smtp.TLSModeStartTLS,
		SenderEmail:  "sender@example.com",
		SupportEmail: "support@example.com",
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*smtp.Config)
		errMsg string
	}{
		{"valid config", func(*smtp.Config) {}, ""},
		{"tls mode", func(c *smtp.Config) { c.TLSMode = smtp.TLSModeTLS }, ""},
		{"plain mode", func(c *smtp.Config) { c.TLSMode = smtp.TLSModePlain }, ""},
		{"empty host", func(c *smtp.Config) { c.Host = "" }, "Host is required"},
		{"port zero", func(c *smtp.Config) { c.Port = 0 }, "Port must be between 1 and 65535"},
		{"port too high", func(c *smtp.Config) { c.Port = 70000 }, "Port must be between 1 and 65535"},
		{"empty username", func(c *smtp.Config) { c.Username = "" }, "Username is required"},
		{"empty password", func(c *smtp.Config) { c.Password = "" }, "Password is required"},
		{"unknown tls mode", func(c *smtp.Config) { c.TLSMode = "ssl" }, "TLSMode must be starttls, tls, or plain"},
		{"empty sender", func(c *smtp.Config) { c.SenderEmail = "" }, "SenderEmail must be a valid email address"},
		{"malformed sender", func(c *smtp.Config) { c.SenderEmail = "not-an-email" }, "SenderEmail must be a valid email address"},
		{"malformed support", func(c *smtp.Config) { c.SupportEmail = "invalid@" }, "SupportEmail must be a valid email address"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)

			client, err := smtp.New(cfg)
			if tt.errMsg == "" {
				require.NoError(t, err)
				assert.NotNil(t, client)
				return
			}
			require.ErrorIs(t, err, email.ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Nil(t, client)
		})
	}
}

func TestMustNew(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		client := smtp.MustNew(validConfig())
		assert.NotNil(t, client)
	})
	assert.Panics(t, func() {
		smtp.MustNew(smtp.Config{})
	})
}

func TestSendEmail_ParamValidation(t *testing.T) {
	t.Parallel()

	client, err := smtp.New(validConfig())
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name   string
		params email.SendEmailParams
	}{
		{"empty recipient", email.SendEmailParams{Subject: "s", BodyHTML: "<p>b</p>"}},
		{"malformed recipient", email.SendEmailParams{SendTo: "nope", Subject: "s", BodyHTML: "<p>b</p>"}},
		{"empty subject", email.SendEmailParams{SendTo: "u@example.com", BodyHTML: "<p>b</p>"}},
		{"empty body", email.SendEmailParams{SendTo: "u@example.com", Subject: "s"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := client.SendEmail(ctx, tt.params)
			assert.ErrorIs(t, err, email.ErrInvalidParams)
		})
	}
}

func TestSendEmail_ConnectionError(t *testing.T) {
	t.Parallel()

	// Grab a port nothing is listening on.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	cfg := validConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = port
	cfg.TLSMode = smtp.TLSModePlain

	client, err := smtp.New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = client.SendEmail(ctx, email.SendEmailParams{
		SendTo:   "user@example.com",
		Subject:  "Verify your email",
		BodyHTML: "<p>link</p>",
		Tag:      "verify_email",
	})
	require.ErrorIs(t, err, email.ErrFailedToSendEmail)
	assert.Contains(t, err.Error(), "failed to connect to SMTP server")
}

func TestClientImplementsSender(t *testing.T) {
	t.Parallel()

	var _ email.Sender = smtp.MustNew(validConfig())
}
