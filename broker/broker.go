// Package broker is an in-process publish/subscribe fan-out of
// amp.MonitorEvent values. The teacher's server/server.go calls
// s.broker.Subscribe() against a broker package that the retrieval pack
// did not include (filtered out as non-protocol code); this is written
// from that call-site contract, in the same mutex-guarded-map idiom as
// detect.Detector.
package broker

import "sync"

// Event is a local alias kept generic over what's broadcast, so broker
// does not need to import amp just to name its payload type at the
// package boundary used by web and tui.
type Event = any

// Broker fans captured events out to any number of subscribers.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	buf    int
}

// New creates a Broker whose per-subscriber channels are buffered to buf
// entries; a slow subscriber drops events rather than blocking publishers.
func New(buf int) *Broker {
	return &Broker{subs: make(map[int]chan Event), buf: buf}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. Grounded on server/server.go's
// `ch, unsub := s.broker.Subscribe(); defer unsub()` usage.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buf)
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
		b.mu.Unlock()
	}
}

// Publish fans ev out to every current subscriber. Non-blocking: a
// subscriber whose buffer is full simply misses this event.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close closes every subscriber channel and drops them, used at daemon
// shutdown.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
