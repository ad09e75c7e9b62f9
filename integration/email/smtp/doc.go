// Package smtp provides an SMTP-based implementation of the email.Sender
// interface used by the engine for verification, password-reset, and
// deletion mail.
//
// The client supports three TLS modes (starttls, tls, plain), builds
// MIME-formatted HTML messages, and is safe for concurrent use.
//
// Basic usage:
//
//	var cfg smtp.Config
//	if err := env.Parse(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
//	sender := smtp.MustNew(cfg)
//	auth, err := authifier.New(ctx, authCfg, store, authifier.WithMailer(sender))
//
// Configuration environment variables:
//
//	SMTP_HOST           (required)
//	SMTP_PORT           (default: 587)
//	SMTP_USERNAME       (required)
//	SMTP_PASSWORD       (required)
//	SMTP_TLS_MODE       (default: starttls)
//	SMTP_SENDER_EMAIL   (required)
//	SMTP_SUPPORT_EMAIL  (required)
package smtp
