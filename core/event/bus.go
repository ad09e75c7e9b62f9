package event

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// DefaultBufferSize is the default capacity of the in-memory bus.
const DefaultBufferSize = 100

// Emitter is the producer side consumed by the engine's services.
type Emitter interface {
	// Emit publishes the payload without blocking. Implementations drop the
	// event (and may log) when the consumer cannot keep up.
	Emit(ctx context.Context, payload any)
}

// Bus is a bounded many-producer single-consumer event queue backed by a Go
// channel. Sends never block: when the buffer is full the event is dropped
// and logged, so a slow or absent consumer cannot stall authentication.
type Bus struct {
	ch     chan Event
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithBufferSize sets the channel capacity. Default is 100.
func WithBufferSize(size int) BusOption {
	return func(b *Bus) {
		if size > 0 {
			b.ch = make(chan Event, size)
		}
	}
}

// WithLogger configures structured logging for dropped events.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBus creates an in-memory event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		ch:     make(chan Event, DefaultBufferSize),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Emit implements Emitter.
func (b *Bus) Emit(ctx context.Context, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	evt := New(payload)
	select {
	case b.ch <- evt:
	default:
		b.logger.WarnContext(ctx, "event dropped: bus buffer full",
			slog.String("event", evt.Name),
			slog.Int("buffer", cap(b.ch)))
	}
}

// Events returns the consumer side of the bus.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Close shuts down the bus. Emit becomes a no-op and the Events channel is
// closed so consumers can drain and exit.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
