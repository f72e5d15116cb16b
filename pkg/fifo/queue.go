// SPDX-License-Identifier: MIT
/*
Package fifo provides a first-in first-out queue with an optional bound.

Values are held in a github.com/gammazero/deque ring, which grows and shrinks
by powers of two and does not allocate per value.

The queue is not safe for concurrent use. Owners that share a queue between a
producer and a consumer guard it with their own lock, which lets them keep the
push and the work that produced the value inside one critical section.

Capacity:
  - 0 means unbounded.
  - >0 bounds the queue, pushing onto a full queue evicts the oldest value.
*/
package fifo

import "github.com/gammazero/deque"

// minRing is the ring size an unbounded queue never shrinks below.
const minRing = 16

// Queue is an ordered FIFO of values of type T.
type Queue[T any] struct {
	ring     deque.Deque[T]
	capacity int // 0 for unbounded.
	dropped  uint64
}

// New creates a queue. A capacity of 0 (or less) creates an unbounded queue.
func New[T any](capacity int) *Queue[T] {
	q := &Queue[T]{capacity: max(capacity, 0)}
	base := minRing
	if q.capacity > 0 {
		base = q.capacity
	}
	q.ring.SetBaseCap(base)
	return q
}

// Push appends v at the back. It reports whether the oldest value had to be
// evicted to make room.
func (q *Queue[T]) Push(v T) (dropped bool) {
	if q.capacity > 0 && q.ring.Len() == q.capacity {
		q.ring.PopFront()
		q.dropped++
		dropped = true
	}
	q.ring.PushBack(v)
	return dropped
}

// Pop removes and returns the value at the front. The boolean is false when
// the queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	if q.ring.Len() == 0 {
		var zero T
		return zero, false
	}
	return q.ring.PopFront(), true
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int { return q.ring.Len() }

// Dropped returns how many values were evicted by Push over the queue lifetime.
func (q *Queue[T]) Dropped() uint64 { return q.dropped }
