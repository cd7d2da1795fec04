// Package bus is the in-process fan-out stream canonical events are
// published on. Publishing surrenders ownership: the core holds no
// reference to an event after emit.
package bus

import (
	"log/slog"
	"sync"

	"github.com/you/crossfeed/internal/core"
)

const defaultBuffer = 64

type subscriber struct {
	name string
	ch   chan core.Event
}

// Bus fans every published event out to all subscribers. Delivery is
// non-blocking; a slow subscriber drops events rather than stalling the
// ingest path.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscriber
	closed bool

	closeOnce sync.Once
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers a named tap and returns its channel. The buffer size
// falls back to a sane default when non-positive.
func (b *Bus) Subscribe(name string, buffer int) <-chan core.Event {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	sub := &subscriber{name: name, ch: make(chan core.Event, buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subs = append(b.subs, sub)
	return sub.ch
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(ev core.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			slog.Debug("bus: subscriber lagging, event dropped",
				"subscriber", sub.name, "type", string(ev.Type))
		}
	}
}

// Close shuts all subscriber channels. Idempotent.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.closed = true
		for _, sub := range b.subs {
			close(sub.ch)
		}
		b.subs = nil
	})
}
