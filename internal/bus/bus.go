// Package bus implements the single-writer-per-market, many-reader event
// fan-out between the book engine, the strategy, and the dashboard.
package bus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"

	"github.com/doug4987/New-MM-Test/internal/obs"
	"github.com/doug4987/New-MM-Test/internal/schema"
)

var ErrClosed = errors.New("event bus closed")

// Subscriber is one bounded reader queue attached to the bus. A slow
// subscriber never blocks publication: on overflow the oldest queued event is
// dropped and counted as lag.
type Subscriber struct {
	name    string
	ch      chan schema.Event
	dropped atomic.Uint64
}

// Events returns the subscriber's delivery channel. Events for the same
// market arrive in publish order.
func (s *Subscriber) Events() <-chan schema.Event {
	return s.ch
}

// Name returns the subscriber name used for metrics.
func (s *Subscriber) Name() string {
	return s.name
}

// Lag returns the number of events dropped for this subscriber.
func (s *Subscriber) Lag() uint64 {
	return s.dropped.Load()
}

// Bus fans events out to all subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   []*Subscriber
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe attaches a new bounded subscriber queue.
func (b *Bus) Subscribe(name string, capacity int) *Subscriber {
	if capacity <= 0 {
		capacity = 1
	}
	sub := &Subscriber{
		name: name,
		ch:   make(chan schema.Event, capacity),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs = append(b.subs, sub)
	return sub
}

// Unsubscribe detaches a subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(sub.ch)
			}
			return
		}
	}
}

// Publish delivers the event to every subscriber without blocking.
// Publication order is preserved per subscriber because each market's events
// are published from a single partition loop.
func (b *Bus) Publish(event schema.Event) error {
	if event.TsPublish == 0 {
		event.TsPublish = time.Now().UTC().UnixNano()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
			continue
		default:
		}

		// Queue full: drop the oldest event to make room, keeping order for
		// what remains. The drop is counted, never silent.
		select {
		case <-sub.ch:
			sub.dropped.Add(1)
			obs.BusDroppedTotal.WithLabelValues(sub.name).Inc()
		default:
		}

		select {
		case sub.ch <- event:
		default:
			sub.dropped.Add(1)
			obs.BusDroppedTotal.WithLabelValues(sub.name).Inc()
		}
	}
	return nil
}

// Close stops the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
