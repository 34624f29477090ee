package events

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/budgetbook/internal/logging"
	"github.com/dmitrijs2005/budgetbook/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DeliversInOrder(t *testing.T) {
	b := NewBus(logging.Discard())
	var got []string

	b.Subscribe(func(e Event) { got = append(got, "a:"+e.Scope.String()) })
	b.Subscribe(func(e Event) { got = append(got, "b:"+e.Scope.String()) })

	b.Emit(context.Background(), Event{Kind: BookChanged, Scope: models.PartyScope("p1")})

	assert.Equal(t, []string{"a:p1", "b:p1"}, got)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus(logging.Discard())
	calls := 0

	unsub := b.Subscribe(func(Event) { calls++ })
	b.Emit(context.Background(), Event{Kind: BookChanged})
	unsub()
	unsub()
	b.Emit(context.Background(), Event{Kind: BookChanged})

	assert.Equal(t, 1, calls)
}

func TestBus_PanickingListenerIsIsolated(t *testing.T) {
	b := NewBus(logging.Discard())
	reached := false

	b.Subscribe(func(Event) { panic("listener bug") })
	b.Subscribe(func(Event) { reached = true })

	require.NotPanics(t, func() {
		b.Emit(context.Background(), Event{Kind: BookChanged})
	})
	assert.True(t, reached)
}

func TestBus_NoReplayForLateSubscribers(t *testing.T) {
	b := NewBus(nil)
	b.Emit(context.Background(), Event{Kind: BookChanged})

	calls := 0
	b.Subscribe(func(Event) { calls++ })

	assert.Zero(t, calls)
}

func TestBus_ListenerMayUnsubscribeDuringEmit(t *testing.T) {
	b := NewBus(nil)
	calls := 0

	var unsub func()
	unsub = b.Subscribe(func(Event) {
		calls++
		unsub()
	})

	b.Emit(context.Background(), Event{Kind: BookChanged})
	b.Emit(context.Background(), Event{Kind: BookChanged})

	assert.Equal(t, 1, calls)
}
