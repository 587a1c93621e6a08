package capture

import (
	"sync"
	"testing"
	"time"

	"screenrec/internal/gfx"
)

// fakeSource delivers frames when the test pushes them, calling the
// arrival callback on the pushing goroutine.
type fakeSource struct {
	device *gfx.MemoryDevice

	mu      sync.Mutex
	cb      func()
	pending *Frame
	closed  bool
}

func newFakeSource(device *gfx.MemoryDevice) *fakeSource {
	return &fakeSource{device: device}
}

func (f *fakeSource) Start(onArrived func()) error {
	f.mu.Lock()
	f.cb = onArrived
	f.mu.Unlock()
	return nil
}

func (f *fakeSource) Unsubscribe() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *fakeSource) TryGetNextFrame() (*Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pending
	f.pending = nil
	return p, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.pending.Release()
	f.pending = nil
	return nil
}

// push delivers a w x h frame whose every byte is value.
func (f *fakeSource) push(t *testing.T, w, h int, value byte, at time.Duration) {
	t.Helper()
	tex, err := f.device.CreateTexture(gfx.NewDesc(w, h, gfx.UsageDefault))
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	pix := make([]byte, w*h*4)
	for i := range pix {
		pix[i] = value
	}
	if err := f.device.Upload(tex, pix, w*4); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	f.mu.Lock()
	old := f.pending
	f.pending = &Frame{Texture: tex, ContentWidth: w, ContentHeight: h, Time: at}
	cb := f.cb
	f.mu.Unlock()
	old.Release()

	if cb != nil {
		cb()
	}
}

type fakePlatform struct {
	source      *fakeSource
	unsupported bool
}

func (p *fakePlatform) Name() string    { return "fake" }
func (p *fakePlatform) Supported() bool { return !p.unsupported }

func (p *fakePlatform) OpenSource(gfx.Device, Target, gfx.Format, bool) (Source, error) {
	return p.source, nil
}

func startFake(t *testing.T, pitchAlign int, bounds gfx.Box) (*Session, *fakeSource, *gfx.MemoryDevice) {
	t.Helper()
	device := gfx.NewMemoryDevice(pitchAlign)
	src := newFakeSource(device)
	s, err := Start(Options{
		Device:   device,
		Platform: &fakePlatform{source: src},
		Format:   gfx.FormatBGRA8,
		Bounds:   bounds,
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, src, device
}
