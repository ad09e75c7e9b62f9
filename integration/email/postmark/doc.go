// Package postmark provides a Postmark-backed implementation of the
// email.Sender interface used by the engine's mail-driven flows.
//
// Messages are sent through Postmark's transactional API with open and
// HTML-link tracking enabled and Reply-To pointing at the support address.
// The engine's Tag field maps directly onto Postmark message tags, so
// verification, reset, and deletion mail can be told apart in delivery
// analytics.
//
// Basic usage:
//
//	var cfg postmark.Config
//	if err := env.Parse(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
//	sender := postmark.MustNew(cfg)
//	auth, err := authifier.New(ctx, authCfg, store, authifier.WithMailer(sender))
package postmark
