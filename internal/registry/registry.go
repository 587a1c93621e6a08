// Package registry maps small integer handles to owned values. Freed
// handles are reused lowest first and trailing free slots are trimmed so
// the table shrinks back after bursts.
package registry

import (
	"fmt"
	"sync"

	"screenrec/internal/errs"
)

type Registry[T any] struct {
	mu    sync.Mutex
	slots []*T
}

func New[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Add stores v and returns its handle.
func (r *Registry[T]) Add(v *T) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.slots {
		if s == nil {
			r.slots[i] = v
			return i
		}
	}
	r.slots = append(r.slots, v)
	return len(r.slots) - 1
}

// Get returns the value behind handle.
func (r *Registry[T]) Get(handle int) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if handle < 0 || handle >= len(r.slots) || r.slots[handle] == nil {
		return nil, fmt.Errorf("%w: invalid handle %d", errs.ErrClosed, handle)
	}
	return r.slots[handle], nil
}

// Remove frees handle and returns the value it held, so the caller can
// close it outside the registry lock.
func (r *Registry[T]) Remove(handle int) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if handle < 0 || handle >= len(r.slots) || r.slots[handle] == nil {
		return nil, fmt.Errorf("%w: invalid handle %d", errs.ErrClosed, handle)
	}
	v := r.slots[handle]
	r.slots[handle] = nil

	n := len(r.slots)
	for n > 0 && r.slots[n-1] == nil {
		n--
	}
	clear(r.slots[n:])
	r.slots = r.slots[:n]
	return v, nil
}

// Len returns the table size including free slots below the last used one.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// Drain empties the registry and returns every live value.
func (r *Registry[T]) Drain() []*T {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*T
	for _, s := range r.slots {
		if s != nil {
			out = append(out, s)
		}
	}
	r.slots = nil
	return out
}
