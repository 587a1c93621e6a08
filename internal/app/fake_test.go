package app

import (
	"sync"
	"sync/atomic"
	"time"

	"screenrec/internal/capture"
	"screenrec/internal/display"
	"screenrec/internal/encoder"
	"screenrec/internal/gfx"
)

// tickSource delivers a display-sized frame filled with fill every
// interval from its own goroutine.
type tickSource struct {
	device   *gfx.MemoryDevice
	width    int
	height   int
	fill     byte
	interval time.Duration

	mu      sync.Mutex
	cb      func()
	pending *capture.Frame

	stop chan struct{}
	wg   sync.WaitGroup
}

func (s *tickSource) Start(onArrived func()) error {
	s.mu.Lock()
	s.cb = onArrived
	s.mu.Unlock()

	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.loop()
	return nil
}

func (s *tickSource) loop() {
	defer s.wg.Done()
	t := time.NewTicker(s.interval)
	defer t.Stop()
	start := time.Now()

	pix := make([]byte, s.width*s.height*4)
	for i := range pix {
		pix[i] = s.fill
	}

	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
		}

		tex, err := s.device.CreateTexture(gfx.NewDesc(s.width, s.height, gfx.UsageDefault))
		if err != nil {
			return
		}
		if err := s.device.Upload(tex, pix, s.width*4); err != nil {
			tex.Release()
			return
		}

		s.mu.Lock()
		old := s.pending
		s.pending = &capture.Frame{Texture: tex, ContentWidth: s.width, ContentHeight: s.height, Time: time.Since(start)}
		cb := s.cb
		s.mu.Unlock()
		old.Release()

		if cb != nil {
			cb()
		}
	}
}

func (s *tickSource) Unsubscribe() {
	s.mu.Lock()
	s.cb = nil
	s.mu.Unlock()
}

func (s *tickSource) TryGetNextFrame() (*capture.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.pending
	s.pending = nil
	return f, nil
}

func (s *tickSource) Close() error {
	if s.stop != nil {
		close(s.stop)
	}
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.Release()
	s.pending = nil
	return nil
}

type fakePlatform struct {
	device *gfx.MemoryDevice
	opened atomic.Int32
	// interval between frames; zero means 2ms.
	interval time.Duration
}

func (p *fakePlatform) Name() string    { return "fake" }
func (p *fakePlatform) Supported() bool { return true }

func (p *fakePlatform) OpenSource(device gfx.Device, target capture.Target, format gfx.Format, cursor bool) (capture.Source, error) {
	p.opened.Add(1)
	interval := p.interval
	if interval == 0 {
		interval = 2 * time.Millisecond
	}
	return &tickSource{
		device:   p.device,
		width:    target.Display.Width,
		height:   target.Display.Height,
		fill:     7,
		interval: interval,
	}, nil
}

func testDisplays() (display.DisplayList, error) {
	return display.DisplayList{
		{Index: 0, Name: "left", Width: 640, Height: 480, IsPrimary: true},
		{Index: 1, Name: "right", X: 640, Width: 320, Height: 240},
	}, nil
}

// recordingBackend counts calls and stops the app after stopAfter frames.
type recordingBackend struct {
	mu        sync.Mutex
	job       encoder.Job
	inits     int
	frames    int
	finalized bool
	closed    bool

	stopAfter int
	onStop    func()
}

func (b *recordingBackend) Name() string { return "recording" }

func (b *recordingBackend) Initialize(job encoder.Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inits++
	b.job = job
	return nil
}

func (b *recordingBackend) SubmitFrame(tex gfx.Texture, pts float64) error {
	b.mu.Lock()
	b.frames++
	n := b.frames
	b.mu.Unlock()
	if n == b.stopAfter && b.onStop != nil {
		b.onStop()
	}
	return nil
}

func (b *recordingBackend) Finalize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finalized = true
	return nil
}

func (b *recordingBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *recordingBackend) ErrorMessage() string { return "" }
