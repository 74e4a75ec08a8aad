package otel

import (
	"maps"
	"slices"
	"sync"
)

// DefaultRingSize is the capacity used when NewRingBuffer gets size <= 0.
const DefaultRingSize = 512

// RingBuffer holds the newest events for the debug overlay and the
// /debug/events endpoint. Safe for concurrent use.
type RingBuffer struct {
	mu      sync.Mutex
	slots   []Event
	written uint64
}

// NewRingBuffer returns an empty buffer holding up to size events.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingBuffer{slots: make([]Event, size)}
}

// Push stores e over the oldest slot once the buffer is full. Extra is
// cloned because emitters reuse their maps.
func (r *RingBuffer) Push(e Event) {
	e.Extra = maps.Clone(e.Extra)
	r.mu.Lock()
	r.slots[r.written%uint64(len(r.slots))] = e
	r.written++
	r.mu.Unlock()
}

// Len is the number of events held.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held()
}

// Snapshot returns every held event, oldest first.
func (r *RingBuffer) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tail(r.held())
}

// Last returns the newest n events, oldest first.
func (r *RingBuffer) Last(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tail(min(n, r.held()))
}

// Filter returns held events whose kind is listed, oldest first. With no
// kinds it is Snapshot.
func (r *RingBuffer) Filter(kinds ...EventKind) []Event {
	events := r.Snapshot()
	if len(kinds) == 0 {
		return events
	}
	return slices.DeleteFunc(events, func(e Event) bool {
		return !slices.Contains(kinds, e.Kind)
	})
}

func (r *RingBuffer) held() int {
	return int(min(r.written, uint64(len(r.slots))))
}

// tail copies the newest n slots. r.mu must be held.
func (r *RingBuffer) tail(n int) []Event {
	if n <= 0 {
		return nil
	}
	out := make([]Event, n)
	size := uint64(len(r.slots))
	for i := range out {
		out[i] = r.slots[(r.written-uint64(n)+uint64(i))%size]
	}
	return out
}
