package event_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authifier/authifier/core/event"
)

func TestBus_Emit(t *testing.T) {
	t.Parallel()

	t.Run("delivers events in order", func(t *testing.T) {
		t.Parallel()

		bus := event.NewBus(event.WithBufferSize(10))
		defer bus.Close()

		ctx := context.Background()
		bus.Emit(ctx, event.AccountCreated{AccountID: "a1", Email: "one@example.com"})
		bus.Emit(ctx, event.SessionCreated{UserID: "a1", SessionID: "s1"})

		first := <-bus.Events()
		assert.Equal(t, "AccountCreated", first.Name)
		require.IsType(t, event.AccountCreated{}, first.Payload)
		assert.NotEmpty(t, first.ID)

		second := <-bus.Events()
		assert.Equal(t, "SessionCreated", second.Name)
	})

	t.Run("drops instead of blocking when full", func(t *testing.T) {
		t.Parallel()

		bus := event.NewBus(event.WithBufferSize(1))
		defer bus.Close()

		ctx := context.Background()
		bus.Emit(ctx, event.SessionDeleted{UserID: "a1", SessionID: "s1"})
		// Buffer is full; this must return immediately.
		bus.Emit(ctx, event.SessionDeleted{UserID: "a1", SessionID: "s2"})

		evt := <-bus.Events()
		assert.Equal(t, "s1", evt.Payload.(event.SessionDeleted).SessionID)
		select {
		case <-bus.Events():
			t.Fatal("expected second event to be dropped")
		default:
		}
	})

	t.Run("emit after close is a no-op", func(t *testing.T) {
		t.Parallel()

		bus := event.NewBus()
		bus.Close()
		bus.Emit(context.Background(), event.AllSessionsDeleted{UserID: "a1"})

		_, open := <-bus.Events()
		assert.False(t, open)
	})
}
