package queue

// RingQueue is a bounded FIFO queue on a circular buffer.
//
// When the queue is full, Enqueue evicts the oldest item to make room. Use Push to learn
// whether, and which, item was evicted.
//
// RingQueue is not goroutine-safe.
type RingQueue[T any] struct {
	items []T
	head  int
	size  int
}

var _ Queue[int] = (*RingQueue[int])(nil)

// NewRingQueue creates a RingQueue holding at most capacity items.
// A capacity below 1 is treated as 1.
func NewRingQueue[T any](capacity int) *RingQueue[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &RingQueue[T]{items: make([]T, capacity)}
}

// Capacity returns the maximum number of items the queue holds.
func (q *RingQueue[T]) Capacity() int {
	return len(q.items)
}

// Enqueue adds an item to the tail of the queue, evicting the oldest item if the queue is full.
func (q *RingQueue[T]) Enqueue(item T) {
	q.Push(item)
}

// Push adds an item to the tail of the queue.
// If the queue was full, the evicted head item is returned with evicted set to true.
func (q *RingQueue[T]) Push(item T) (old T, evicted bool) {
	if q.size == len(q.items) {
		old = q.items[q.head]
		q.items[q.head] = item
		q.head = (q.head + 1) % len(q.items)

		return old, true
	}

	q.items[(q.head+q.size)%len(q.items)] = item
	q.size++

	return old, false
}

// Dequeue removes and returns the item at the head of the queue.
func (q *RingQueue[T]) Dequeue() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *RingQueue[T]) Peek() (T, bool) {
	if q.size == 0 {
		var zero T
		return zero, false
	}

	return q.items[q.head], true
}

// Reset empties the queue, keeping its capacity.
func (q *RingQueue[T]) Reset() {
	clear(q.items)
	q.head = 0
	q.size = 0
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *RingQueue[T]) IsEmpty() bool {
	return q.size == 0
}

// IsFull returns true if the next Enqueue will evict an item.
func (q *RingQueue[T]) IsFull() bool {
	return q.size == len(q.items)
}

// Length returns the number of items in the queue.
func (q *RingQueue[T]) Length() int {
	return q.size
}
