// Package coordinator runs an encode job: it pulls the newest captured
// texture at the target frame rate, stamps it with a wall clock pts and
// feeds it to an encoder backend.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"screenrec/internal/buffer"
	"screenrec/internal/encoder"
	"screenrec/internal/errs"
	"screenrec/internal/gfx"
	"screenrec/internal/throttle"
	"screenrec/internal/timer"
)

const (
	DefaultFirstFrameTimeout = 10 * time.Second
	// DefaultStallTimeout is how long the previous frame is held when the
	// capture source stops delivering before the job fails.
	DefaultStallTimeout = 10 * time.Second
)

// active is set while any coordinator in the process is encoding.
var active atomic.Bool

// Busy reports whether an encode job is running anywhere in the process.
func Busy() bool {
	return active.Load()
}

// Source supplies captured frames. *capture.Session satisfies it.
type Source interface {
	ReadNextTexture(timeout time.Duration) (gfx.Texture, float64, error)
}

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

type Coordinator struct {
	device     gfx.Device
	newBackend encoder.Factory

	FirstFrameTimeout time.Duration
	StallTimeout      time.Duration

	stop    atomic.Bool
	state   atomic.Int32
	samples *buffer.History[float64]

	mu      sync.Mutex
	lastErr string
	lastJob encoder.Job
}

func New(device gfx.Device, factory encoder.Factory) *Coordinator {
	return &Coordinator{
		device:            device,
		newBackend:        factory,
		FirstFrameTimeout: DefaultFirstFrameTimeout,
		StallTimeout:      DefaultStallTimeout,
		samples:           buffer.NewHistory[float64](0),
	}
}

func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Stop asks the running job to finish. It takes effect at the next loop
// iteration and the job is still finalized.
func (c *Coordinator) Stop() {
	c.stop.Store(true)
}

// SampleTimes copies the pts of every sample the last job submitted into
// dst and returns the count. A nil dst returns how many exist.
func (c *Coordinator) SampleTimes(dst []float64) int {
	return c.samples.CopyTo(dst)
}

// ErrorMessage returns the description of the last failure.
func (c *Coordinator) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// LastJob returns the job the last run encoded, with derived settings.
func (c *Coordinator) LastJob() encoder.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastJob
}

// Encode records src into destination until Stop, ctx cancellation,
// props.Seconds or a failure. It returns the boundary result code along
// with the error. Only one Encode runs per process; others fail with
// ErrEncoderBusy before touching any resource.
func (c *Coordinator) Encode(ctx context.Context, src Source, props encoder.Properties, destination string) (code int, err error) {
	if !active.CompareAndSwap(false, true) {
		err := fmt.Errorf("%w: another encode is in progress", errs.ErrEncoderBusy)
		return errs.Code(err), err
	}
	defer active.Store(false)

	c.stop.Store(false)
	c.samples.Clear()
	c.state.Store(int32(StateRunning))

	stopped := false
	defer func() {
		if r := recover(); r != nil {
			slog.Error("encoder panic", "panic", r)
			err = fmt.Errorf("encoder panic: %v", r)
		}

		switch {
		case err != nil:
			c.state.Store(int32(StateFailed))
			c.mu.Lock()
			c.lastErr = err.Error()
			c.mu.Unlock()
			slog.Error("encode failed", "error", err, "path", destination)
		case stopped:
			c.state.Store(int32(StateStopped))
		default:
			c.state.Store(int32(StateCompleted))
		}
		code = errs.Code(err)
	}()

	stopped, err = c.run(ctx, src, props, destination)
	return 0, err
}

func (c *Coordinator) run(ctx context.Context, src Source, props encoder.Properties, destination string) (bool, error) {
	first, _, err := src.ReadNextTexture(c.FirstFrameTimeout)
	if err != nil {
		if errors.Is(err, errs.ErrClosed) {
			return false, err
		}
		return false, fmt.Errorf("%w: no frame within %v: %v", errs.ErrResourceTimeout, c.FirstFrameTimeout, err)
	}
	current := first
	defer func() {
		current.Release()
	}()

	d := first.Desc()
	job, err := encoder.NewJob(props, d.Width, d.Height, destination)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	c.lastJob = job
	c.mu.Unlock()

	thr, err := throttle.New(float64(job.FrameRate))
	if err != nil {
		return false, err
	}
	clock, err := timer.New()
	if err != nil {
		return false, err
	}
	defer clock.Close()

	backend := c.newBackend(c.device)
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			slog.Warn("failed to close encoder backend", "backend", backend.Name(), "error", cerr)
		}
	}()
	if err := backend.Initialize(job); err != nil {
		return false, backendError(backend, "initialize", err)
	}

	slog.Info("encode started", "backend", backend.Name(), "job", job.String())

	frameInterval := time.Second / time.Duration(job.FrameRate)
	clock.Start()
	lastArrival := time.Now()
	var held int64

	submit := func(pts float64) error {
		if err := backend.SubmitFrame(current, pts); err != nil {
			return backendError(backend, "submit frame", err)
		}
		c.samples.Push(pts)
		return nil
	}

	if err := submit(0); err != nil {
		return false, err
	}
	thr.Step()

	stopped := false
	for {
		if c.stop.Load() || ctx.Err() != nil {
			stopped = true
			break
		}
		if job.Seconds > 0 && clock.Seconds() >= float64(job.Seconds) {
			break
		}

		thr.Step()

		next, _, err := src.ReadNextTexture(frameInterval)
		switch {
		case err == nil:
			current.Release()
			current = next
			lastArrival = time.Now()
		case errors.Is(err, errs.ErrResourceTimeout):
			if time.Since(lastArrival) > c.StallTimeout {
				return false, fmt.Errorf("%w: no new frame for %v", errs.ErrResourceTimeout, c.StallTimeout)
			}
			held++
		default:
			return false, fmt.Errorf("read frame: %w", err)
		}

		if err := submit(clock.Seconds()); err != nil {
			return false, err
		}
	}

	if err := backend.Finalize(); err != nil {
		return false, backendError(backend, "finalize", err)
	}

	slog.Info("encode finished",
		"path", destination,
		"samples", c.samples.Len(),
		"held", held,
		"seconds", clock.Seconds(),
		"stopped", stopped,
	)
	return stopped, nil
}

// backendError makes sure backend failures carry ErrBackend and the
// backend's own description.
func backendError(b encoder.Backend, op string, err error) error {
	msg := b.ErrorMessage()
	if errors.Is(err, errs.ErrBackend) {
		if msg != "" && msg != err.Error() {
			return fmt.Errorf("%s %s: %w (%s)", b.Name(), op, err, msg)
		}
		return fmt.Errorf("%s %s: %w", b.Name(), op, err)
	}
	if msg == "" {
		msg = err.Error()
	}
	return fmt.Errorf("%w: %s %s: %s", errs.ErrBackend, b.Name(), op, msg)
}
