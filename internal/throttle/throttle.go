// Package throttle paces a loop to a target rate.
package throttle

import (
	"fmt"
	"math"
	"time"

	"screenrec/internal/errs"
	"screenrec/internal/timer"
)

// Clock is the time source a Throttle measures and sleeps with.
// *timer.Timer satisfies it.
type Clock interface {
	Start()
	Elapsed() time.Duration
	Sleep(usec int64) error
}

// Throttle keeps the n-th Step at or after n/rate seconds from the first
// Step. Lateness in one iteration is absorbed by later ones instead of
// accumulating.
type Throttle struct {
	rate    float64
	clock   Clock
	started bool
	steps   int64
}

// New creates a throttle backed by a high resolution timer.
func New(rate float64) (*Throttle, error) {
	tm, err := timer.New()
	if err != nil {
		return nil, err
	}
	return NewWithClock(rate, tm)
}

// NewWithClock creates a throttle on an explicit clock.
func NewWithClock(rate float64, clock Clock) (*Throttle, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: frame rate must be positive, got %v", errs.ErrConfiguration, rate)
	}
	return &Throttle{rate: rate, clock: clock}, nil
}

// Rate returns the target rate in steps per second.
func (t *Throttle) Rate() float64 {
	return t.rate
}

// Step blocks until the schedule allows the next iteration and returns how
// long it slept. The first Step after construction or Reset never sleeps.
func (t *Throttle) Step() time.Duration {
	if !t.started {
		t.started = true
		t.steps = 0
		t.clock.Start()
		return 0
	}

	t.steps++
	expected := time.Duration(math.Ceil(float64(t.steps) / t.rate * float64(time.Second)))
	remaining := expected - t.clock.Elapsed()
	if remaining <= 0 {
		return 0
	}

	// Round up so the step never ends before its deadline.
	usec := int64((remaining + time.Microsecond - 1) / time.Microsecond)
	t.clock.Sleep(usec)
	return time.Duration(usec) * time.Microsecond
}

// Reset forgets the schedule; the next Step starts a new one.
func (t *Throttle) Reset() {
	t.started = false
	t.steps = 0
	t.clock.Start()
}
