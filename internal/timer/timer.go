// Package timer provides a monotonic microsecond clock and a precise sleep
// used for frame pacing and latency measurement.
package timer

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"screenrec/internal/errs"
)

// spinWindow is the tail of every sleep that is busy-polled instead of
// handed to the OS wait primitive.
const spinWindow = 200 * time.Microsecond

var resolutionOnce sync.Once

// waiter is the coarse wait primitive behind Sleep.
type waiter interface {
	wait(d time.Duration)
	close() error
}

// Timer measures elapsed time from a base instant. Start must not race
// with the elapsed readers; the readers themselves are safe to share.
type Timer struct {
	base time.Time

	mu     sync.Mutex
	waiter waiter
}

// New creates a started timer. The first call in the process also raises
// the OS timer resolution as far as the platform allows.
func New() (*Timer, error) {
	resolutionOnce.Do(raiseResolution)

	w, err := newWaiter()
	if err != nil {
		return nil, fmt.Errorf("failed to create wait timer: %w", err)
	}

	t := &Timer{waiter: w}
	t.Start()
	return t, nil
}

// Start resets the base instant to now.
func (t *Timer) Start() {
	t.base = time.Now()
}

// Elapsed returns the monotonic duration since Start.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.base)
}

func (t *Timer) Seconds() float64 {
	return t.Elapsed().Seconds()
}

func (t *Timer) Milliseconds() float64 {
	return float64(t.Elapsed()) / float64(time.Millisecond)
}

func (t *Timer) Microseconds() int64 {
	return t.Elapsed().Microseconds()
}

// Sleep blocks for usec microseconds. Most of the interval is spent in the
// coarse waiter; the last spinWindow is spun so the wake-up is not subject
// to scheduler granularity.
func (t *Timer) Sleep(usec int64) error {
	if usec < 0 {
		return fmt.Errorf("%w: negative sleep of %dus", errs.ErrConfiguration, usec)
	}
	d := time.Duration(usec) * time.Microsecond
	deadline := time.Now().Add(d)

	if d > spinWindow {
		t.mu.Lock()
		w := t.waiter
		t.mu.Unlock()
		if w != nil {
			w.wait(d - spinWindow)
		}
	}

	for time.Now().Before(deadline) {
		runtime.Gosched()
	}
	return nil
}

// Close releases the wait primitive. Sleep keeps working afterwards by
// spinning for the whole interval.
func (t *Timer) Close() error {
	t.mu.Lock()
	w := t.waiter
	t.waiter = nil
	t.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.close()
}
