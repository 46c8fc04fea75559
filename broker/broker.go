// Package broker fans captured events out to any number of live
// subscribers: the gRPC Watch stream, the terminal dashboard, and any test
// harness that wants to observe traffic.
package broker

import (
	"sync"
	"sync/atomic"

	"github.com/mickamy/sql-tap-proxy/event"
	"github.com/mickamy/sql-tap-proxy/metrics"
)

// Broker holds a set of subscriber channels and publishes to all of them
// without ever blocking the publisher. One Broker is created per running
// tap invocation, before the proxy starts, and closed after it stops.
type Broker struct {
	capacity int
	metrics  *metrics.Metrics

	mu          sync.RWMutex
	subscribers map[chan event.Event]struct{}

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Option configures a Broker at construction time.
type Option func(*Broker)

// WithMetrics records every publish/drop against m's events_published_total
// and events_dropped_total counters, in addition to the Broker's own
// in-memory Stats.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broker) { b.metrics = m }
}

// New creates a Broker whose subscriber channels are buffered to capacity
// events each.
func New(capacity int, opts ...Option) *Broker {
	b := &Broker{
		capacity:    capacity,
		subscribers: make(map[chan event.Event]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new subscriber and returns its channel along with
// an unsubscribe func that removes and closes it. Calling the returned func
// more than once is safe.
func (b *Broker) Subscribe() (<-chan event.Event, func()) {
	ch := make(chan event.Event, b.capacity)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Publish sends ev to every currently subscribed channel that has spare
// capacity. A full channel drops the event rather than blocking the
// publisher — Publish is called from the proxy's event loop thread, which
// must never wait on a slow subscriber.
func (b *Broker) Publish(ev event.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- ev:
			b.published.Add(1)
		default:
			b.dropped.Add(1)
			if b.metrics != nil {
				b.metrics.EventsDroppedTotal.Inc()
			}
		}
	}

	if b.metrics != nil {
		b.metrics.EventsPublishedTotal.WithLabelValues(ev.Op.String()).Inc()
	}
}

// SubscriberCount reports how many subscribers are currently registered.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Stats returns the running totals of events successfully delivered and
// events dropped because a subscriber's channel was full.
func (b *Broker) Stats() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}
