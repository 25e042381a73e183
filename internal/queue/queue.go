// Package queue provides a bounded FIFO queue.
package queue

// Bounded is a FIFO queue holding at most Cap items. It is not safe for concurrent use.
type Bounded[T any] struct {
	items []T
	cap   int
}

// NewBounded creates a queue that holds at most capacity items. A capacity below 1 is treated as 1.
func NewBounded[T any](capacity int) *Bounded[T] {
	capacity = max(capacity, 1)
	return &Bounded[T]{items: make([]T, 0, capacity), cap: capacity}
}

// Enqueue adds an item to the tail of the queue.
// It returns false and leaves the queue unchanged when the queue is full.
func (q *Bounded[T]) Enqueue(item T) bool {
	if len(q.items) >= q.cap {
		return false
	}
	q.items = append(q.items, item)

	return true
}

// ReplaceTail overwrites the item at the tail of the queue, or enqueues item if the queue is empty.
func (q *Bounded[T]) ReplaceTail(item T) {
	if len(q.items) == 0 {
		q.items = append(q.items, item)
		return
	}
	q.items[len(q.items)-1] = item
}

// Dequeue removes and returns the item at the head of the queue.
func (q *Bounded[T]) Dequeue() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	n := copy(q.items, q.items[1:])
	q.items[n] = zero
	q.items = q.items[:n]

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *Bounded[T]) Peek() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}

	return q.items[0], true
}

// Reset empties the queue.
func (q *Bounded[T]) Reset() {
	clear(q.items)
	q.items = q.items[:0]
}

// IsEmpty reports whether the queue is empty.
func (q *Bounded[T]) IsEmpty() bool { return len(q.items) == 0 }

// IsFull reports whether the queue holds Cap items.
func (q *Bounded[T]) IsFull() bool { return len(q.items) >= q.cap }

// Length returns the number of items in the queue.
func (q *Bounded[T]) Length() int { return len(q.items) }

// Cap returns the queue capacity.
func (q *Bounded[T]) Cap() int { return q.cap }
