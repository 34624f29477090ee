// Package events delivers in-process notifications about budget book changes
// to whoever subscribed. There is no persistence and no replay: a listener
// only sees events emitted after it subscribed.
package events

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/budgetbook/internal/logging"
	"github.com/dmitrijs2005/budgetbook/internal/models"
)

type Kind string

const (
	// BookChanged fires when the active book switches or a party is created,
	// joined, left, renamed or deleted.
	BookChanged Kind = "book_changed"
)

type Event struct {
	Kind  Kind
	Scope models.Scope
}

// Emitter is what services depend on.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

type Listener func(Event)

type Bus struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
	order     []int
	logger    logging.Logger
}

func NewBus(logger logging.Logger) *Bus {
	return &Bus{listeners: make(map[int]Listener), logger: logger}
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Emit calls every current listener synchronously, in subscription order.
// A panicking listener is logged and does not stop delivery to the others.
func (b *Bus) Emit(ctx context.Context, e Event) {
	b.mu.Lock()
	snapshot := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		snapshot = append(snapshot, b.listeners[id])
	}
	b.mu.Unlock()

	for _, fn := range snapshot {
		b.deliver(ctx, fn, e)
	}
}

func (b *Bus) deliver(ctx context.Context, fn Listener, e Event) {
	defer func() {
		if p := recover(); p != nil && b.logger != nil {
			b.logger.Warn(ctx, "event listener panicked", "kind", e.Kind, "panic", p)
		}
	}()
	fn(e)
}
