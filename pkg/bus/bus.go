// Package bus provides the in-process publish/subscribe channel the
// orchestrator emits scoring events on. The bus is constructor-injected by
// the caller; nothing in the repository holds a process-wide emitter.
//
// Publish never blocks: a subscriber that cannot keep up loses events and
// the loss is counted, because scoring must not stall on a slow UI consumer.
package bus

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"github.com/focusquest-dev/focusquest/game"
)

// DefaultBufferSize is the per-subscriber channel buffer.
const DefaultBufferSize = 100

// ErrBusClosed is returned when publishing to or subscribing on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// Bus fans events out to subscribers over buffered channels.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscription
	nextID  int
	bufSize int
	closed  bool
	dropped uint64
}

type subscription struct {
	ch    chan game.Event
	kinds map[string]struct{} // empty means all kinds
}

// Option configures a Bus.
type Option func(*Bus)

// WithBufferSize sets the per-subscriber channel buffer.
func WithBufferSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.bufSize = n
		}
	}
}

// New creates an event bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:    make(map[int]*subscription),
		bufSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a consumer for the given event kinds (all kinds when
// none are given). It returns the receive channel and a cancel function that
// unregisters the subscriber and closes the channel.
func (b *Bus) Subscribe(kinds ...string) (<-chan game.Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, ErrBusClosed
	}

	sub := &subscription{
		ch:    make(chan game.Event, b.bufSize),
		kinds: make(map[string]struct{}, len(kinds)),
	}
	for _, k := range kinds {
		sub.kinds[k] = struct{}{}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel, nil
}

// Publish delivers an event to every matching subscriber without blocking.
// Events to subscribers with a full buffer are dropped and counted.
func (b *Bus) Publish(event game.Event) error {
	if event == nil {
		return errors.New("nil event")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for _, sub := range b.subs {
		if len(sub.kinds) > 0 {
			if _, ok := sub.kinds[event.Kind()]; !ok {
				continue
			}
		}

		// Warn if channel is >80% full
		if utilization := len(sub.ch) * 100 / cap(sub.ch); utilization > 80 {
			log.Printf("WARNING: subscriber channel for %s events is %d%% full (%d/%d)",
				event.Kind(), utilization, len(sub.ch), cap(sub.ch))
		}

		select {
		case sub.ch <- event:
		default:
			atomic.AddUint64(&b.dropped, 1)
		}
	}
	return nil
}

// Dropped returns the number of events dropped on full subscriber buffers.
func (b *Bus) Dropped() uint64 {
	return atomic.LoadUint64(&b.dropped)
}

// Close shuts the bus down and closes all subscriber channels.
// Publish and Subscribe return ErrBusClosed afterward.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
	return nil
}
