package coordinator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"screenrec/internal/encoder"
	"screenrec/internal/errs"
	"screenrec/internal/gfx"
)

// fakeSource hands out a fresh texture per read until limit frames were
// served, then behaves like a stalled capture.
type fakeSource struct {
	device *gfx.MemoryDevice
	width  int
	height int
	limit  int // <0 means unlimited

	mu     sync.Mutex
	served int
}

func newFakeSource(device *gfx.MemoryDevice, w, h, limit int) *fakeSource {
	return &fakeSource{device: device, width: w, height: h, limit: limit}
}

func (s *fakeSource) ReadNextTexture(timeout time.Duration) (gfx.Texture, float64, error) {
	s.mu.Lock()
	n := s.served
	if s.limit >= 0 && n >= s.limit {
		s.mu.Unlock()
		time.Sleep(timeout)
		return nil, -1, fmt.Errorf("%w: no frame within %v", errs.ErrResourceTimeout, timeout)
	}
	s.served++
	s.mu.Unlock()

	tex, err := s.device.CreateTexture(gfx.NewDesc(s.width, s.height, gfx.UsageDefault))
	if err != nil {
		return nil, -1, err
	}
	return tex, float64(n) / 100, nil
}

// descTexture reports an arbitrary description; it cannot be read back.
type descTexture struct {
	desc     gfx.Desc
	released atomic.Int32
}

func (t *descTexture) Desc() gfx.Desc { return t.desc }
func (t *descTexture) AddRef()        {}
func (t *descTexture) Release()       { t.released.Add(1) }

type staticSource struct{ tex gfx.Texture }

func (s staticSource) ReadNextTexture(time.Duration) (gfx.Texture, float64, error) {
	return s.tex, 0, nil
}

// fakeBackend records every call. Hooks run inside SubmitFrame.
type fakeBackend struct {
	mu         sync.Mutex
	job        encoder.Job
	pts        []float64
	inits      int
	finalizes  int
	closes     int
	failInit   bool
	failAt     int // 1-based frame that fails, 0 never
	panicAt    int
	onSubmit   func(n int)
	lastErrMsg string
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Initialize(job encoder.Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inits++
	b.job = job
	if b.failInit {
		b.lastErrMsg = "Codec not found"
		return fmt.Errorf("%w: codec not found", errs.ErrBackend)
	}
	return nil
}

func (b *fakeBackend) SubmitFrame(tex gfx.Texture, pts float64) error {
	b.mu.Lock()
	b.pts = append(b.pts, pts)
	n := len(b.pts)
	hook := b.onSubmit
	b.mu.Unlock()

	if b.panicAt == n {
		panic("encoder exploded")
	}
	if b.failAt == n {
		b.mu.Lock()
		b.lastErrMsg = "write packet failed"
		b.mu.Unlock()
		return fmt.Errorf("write packet failed")
	}
	if hook != nil {
		hook(n)
	}
	return nil
}

func (b *fakeBackend) Finalize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finalizes++
	return nil
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	return nil
}

func (b *fakeBackend) ErrorMessage() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErrMsg
}

func (b *fakeBackend) snapshot() (pts []float64, inits, finalizes, closes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]float64(nil), b.pts...), b.inits, b.finalizes, b.closes
}

// countingFactory returns b and counts how often a backend was requested.
type countingFactory struct {
	b     *fakeBackend
	calls atomic.Int32
}

func (f *countingFactory) new(gfx.Device) encoder.Backend {
	f.calls.Add(1)
	return f.b
}
