package realtime

import (
	"encoding/json"
	"sync"
)

// RawEvent is a server event exactly as it arrived: the envelope type
// name plus its undecoded payload.
type RawEvent struct {
	Name string
	Data json.RawMessage
}

// eventBus fans incoming events out to subscribers. Each subscriber has
// a bounded channel; when a subscriber falls behind, new events for it
// are dropped rather than blocking the read pump.
type eventBus struct {
	mu   sync.RWMutex
	subs map[int]*eventSub
	next int
}

type eventSub struct {
	name string // event name filter, "" matches everything
	ch   chan RawEvent
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]*eventSub)}
}

func (b *eventBus) publish(evt RawEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.name != "" && sub.name != evt.Name {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Subscriber buffer full, drop.
		}
	}
}

// subscribe registers a bounded subscriber for the given event name
// ("" for all events). Returns the channel and an unsubscribe function.
func (b *eventBus) subscribe(name string, bufSize int) (<-chan RawEvent, func()) {
	ch := make(chan RawEvent, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &eventSub{name: name, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// stateChange is one published transition. The sequence number is
// monotone per bus, so a consumer can tell a fresh transition from one
// that was queued before some reference point.
type stateChange struct {
	state ConnectionState
	seq   uint64
}

// stateBus is the same fan-out for connection state transitions.
// Publishing holds the write lock so sequence numbers and channel order
// always agree.
type stateBus struct {
	mu   sync.Mutex
	subs map[int]chan stateChange
	next int
	seq  uint64
}

func newStateBus() *stateBus {
	return &stateBus{subs: make(map[int]chan stateChange)}
}

func (b *stateBus) publish(s ConnectionState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	sc := stateChange{state: s, seq: b.seq}
	for _, ch := range b.subs {
		select {
		case ch <- sc:
		default:
		}
	}
}

// lastSeq returns the sequence number of the most recent transition.
func (b *stateBus) lastSeq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

func (b *stateBus) subscribe(bufSize int) (<-chan stateChange, func()) {
	ch := make(chan stateChange, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
