package buffer

import "sync"

// History is an append-only list of values safe for concurrent use. Unlike
// Ring it never drops anything; it is cleared explicitly.
type History[T any] struct {
	mu   sync.Mutex
	data []T
}

func NewHistory[T any](capacity int) *History[T] {
	return &History[T]{data: make([]T, 0, max(capacity, 0))}
}

func (h *History[T]) Push(values ...T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = append(h.data, values...)
}

// CopyTo fills dst with the oldest values and returns how many were
// copied. A nil dst returns the number of values available.
func (h *History[T]) CopyTo(dst []T) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if dst == nil {
		return len(h.data)
	}
	return copy(dst, h.data)
}

func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.data)
}

// Clear empties the history and releases its storage.
func (h *History[T]) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = nil
}
