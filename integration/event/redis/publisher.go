// Package redis fans the engine's lifecycle events out over Redis pub/sub,
// so session caches and push services in other processes can react to
// account and session changes.
package redis

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/authifier/authifier/core/event"
)

// DefaultChannel is the pub/sub channel events are published on.
const DefaultChannel = "authifier:events"

// Publisher implements event.Emitter over Redis pub/sub. Delivery is
// fire-and-forget: publish failures are logged and never fail the operation
// that emitted the event.
type Publisher struct {
	client  *redis.Client
	channel string
	log     *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithChannel overrides the pub/sub channel name.
func WithChannel(name string) Option {
	return func(p *Publisher) {
		if name != "" {
			p.channel = name
		}
	}
}

// WithLogger sets the structured logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPublisher wraps a connected Redis client.
func NewPublisher(client *redis.Client, opts ...Option) *Publisher {
	p := &Publisher{
		client:  client,
		channel: DefaultChannel,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit publishes the payload wrapped in an event envelope.
func (p *Publisher) Emit(ctx context.Context, payload any) {
	evt := event.New(payload)
	body, err := json.Marshal(evt)
	if err != nil {
		p.log.WarnContext(ctx, "event marshal failed", "event", evt.Name, "error", err)
		return
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		p.log.WarnContext(ctx, "event publish failed", "event", evt.Name, "error", err)
	}
}

// Subscribe listens on the channel and decodes events until ctx is done.
// Undecodable messages are skipped with a warning.
func (p *Publisher) Subscribe(ctx context.Context) <-chan event.Event {
	out := make(chan event.Event)
	sub := p.client.Subscribe(ctx, p.channel)

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var evt event.Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					p.log.Warn("event decode failed", "error", err)
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
