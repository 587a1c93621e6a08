package buffer

import "sync"

// Ring keeps the most recent size values pushed into it.
type Ring[T any] struct {
	data []T
	head int
	size int
	full bool
	mu   sync.Mutex
}

func NewRing[T any](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}
	return &Ring[T]{
		data: make([]T, size),
		size: size,
	}
}

func (rb *Ring[T]) Push(values ...T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for _, v := range values {
		rb.data[rb.head] = v
		rb.head++
		if rb.head == rb.size {
			rb.head = 0
			rb.full = true
		}
	}
}

// Snapshot returns the retained values, oldest first.
func (rb *Ring[T]) Snapshot() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.full {
		snap := make([]T, rb.head)
		copy(snap, rb.data[:rb.head])
		return snap
	}

	snap := make([]T, rb.size)
	p1 := copy(snap, rb.data[rb.head:])
	copy(snap[p1:], rb.data[:rb.head])
	return snap
}

// CopyTo fills dst with the oldest retained values and returns how many
// were copied. A nil dst returns the number of values available.
func (rb *Ring[T]) CopyTo(dst []T) int {
	snap := rb.Snapshot()
	if dst == nil {
		return len(snap)
	}
	return copy(dst, snap)
}

func (rb *Ring[T]) Size() int {
	return rb.size
}

func (rb *Ring[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.full {
		return rb.size
	}
	return rb.head
}

func (rb *Ring[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.head = 0
	rb.full = false
}
