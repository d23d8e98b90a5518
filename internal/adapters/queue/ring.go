// Package queue provides the bounded buffers that decouple pipeline stages.
// Both the ingestion queue and the forwarder's outbound buffer are rings that
// shed the oldest entry under saturation: recent telemetry is actionable,
// stale telemetry is not.
package queue

import (
	"sync"
	"sync/atomic"
)

// Ring is a fixed-capacity FIFO. Enqueue never blocks; at capacity the oldest
// item is evicted to admit the newest and the drop counter increments.
// Dequeue blocks until an item arrives or Close is called, then drains the
// remainder before reporting ok=false.
type Ring[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    []T
	head     int // next write position
	tail     int // next read position
	size     int
	closed   bool
	drops    atomic.Uint64
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	r := &Ring[T]{items: make([]T, capacity)}
	r.notEmpty = sync.NewCond(&r.mu)
	return r
}

// Enqueue admits item, evicting the oldest entry if the ring is full.
// It reports false when the item was rejected (closed ring) or an eviction
// occurred.
func (r *Ring[T]) Enqueue(item T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.drops.Add(1)
		return false
	}

	evicted := false
	if r.size == len(r.items) {
		var zero T
		r.items[r.tail] = zero
		r.tail = (r.tail + 1) % len(r.items)
		r.size--
		r.drops.Add(1)
		evicted = true
	}

	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)
	r.size++
	r.notEmpty.Signal()
	return !evicted
}

// Dequeue removes the oldest item, blocking while the ring is open and empty.
func (r *Ring[T]) Dequeue() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.size == 0 && !r.closed {
		r.notEmpty.Wait()
	}

	var zero T
	if r.size == 0 {
		return zero, false
	}

	item := r.items[r.tail]
	r.items[r.tail] = zero
	r.tail = (r.tail + 1) % len(r.items)
	r.size--
	return item, true
}

// TryDequeue removes the oldest item without blocking.
func (r *Ring[T]) TryDequeue() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}
	item := r.items[r.tail]
	r.items[r.tail] = zero
	r.tail = (r.tail + 1) % len(r.items)
	r.size--
	return item, true
}

// Close wakes all blocked readers. Items already queued remain readable;
// further Enqueue calls are rejected.
func (r *Ring[T]) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.notEmpty.Broadcast()
}

func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Drops reports the monotonically increasing count of evicted or rejected
// items.
func (r *Ring[T]) Drops() uint64 {
	return r.drops.Load()
}
