package capture

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"screenrec/internal/buffer"
	"screenrec/internal/errs"
	"screenrec/internal/gfx"
)

// FirstFrameTimeout bounds how long callers wait for a source to deliver
// its first frame.
const FirstFrameTimeout = 10 * time.Second

// Options configure Start.
type Options struct {
	Device   gfx.Device
	Platform Platform
	Target   Target
	Format   gfx.Format
	// Bounds is the region to capture in target coordinates.
	Bounds gfx.Box
	Cursor bool
}

// Stats counts frame traffic through the slot.
type Stats struct {
	Arrivals uint64
	// Dropped counts frames overwritten before any consumer read them.
	Dropped uint64
	Resizes uint64
}

// Session crops frames from a Source into a single slot that always holds
// the newest frame. The source goroutine writes the slot and consumers
// read it; there is no queue, so a slow consumer skips frames.
type Session struct {
	device gfx.Device
	source Source
	target gfx.Box

	// guard fences arrival callbacks against Close.
	guard  sync.Mutex
	closed atomic.Bool

	// mu protects the slot fields below. It is held only for pointer and
	// timestamp assignment.
	mu            sync.Mutex
	current       gfx.Texture
	consumed      bool
	frameTime     float64
	cropped       gfx.Box
	captureBounds gfx.Box
	surfaceW      int
	surfaceH      int
	resized       bool
	stats         Stats

	// Only touched by the arrival callback, under guard.
	epoch     time.Duration
	haveEpoch bool

	captureTimes *buffer.History[float64]

	arrived   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Start begins capturing opts.Bounds of opts.Target.
func Start(opts Options) (*Session, error) {
	if opts.Platform == nil || !opts.Platform.Supported() {
		return nil, errs.ErrCaptureUnsupported
	}
	if opts.Device == nil {
		return nil, fmt.Errorf("%w: no graphics device", errs.ErrConfiguration)
	}
	if opts.Format != gfx.FormatBGRA8 {
		return nil, fmt.Errorf("%w: unsupported pixel format %s", errs.ErrConfiguration, opts.Format)
	}
	if opts.Bounds.Empty() {
		return nil, fmt.Errorf("%w: empty capture bounds %s", errs.ErrConfiguration, opts.Bounds)
	}

	source, err := opts.Platform.OpenSource(opts.Device, opts.Target, opts.Format, opts.Cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s source: %v", errs.ErrPlatformAPI, opts.Platform.Name(), err)
	}

	s := newSession(opts.Device, source, opts.Bounds)
	if err := source.Start(s.onFrameArrived); err != nil {
		source.Close()
		return nil, fmt.Errorf("%w: start %s source: %v", errs.ErrPlatformAPI, opts.Platform.Name(), err)
	}

	slog.Info("capture started",
		"platform", opts.Platform.Name(),
		"bounds", opts.Bounds.String(),
		"cursor", opts.Cursor,
	)
	return s, nil
}

func newSession(device gfx.Device, source Source, bounds gfx.Box) *Session {
	cropped := gfx.Box{Right: bounds.Width(), Bottom: bounds.Height()}
	return &Session{
		device:        device,
		source:        source,
		target:        bounds,
		cropped:       cropped,
		captureBounds: cropped,
		captureTimes:  buffer.NewHistory[float64](0),
		arrived:       make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// onFrameArrived runs on the source goroutine.
func (s *Session) onFrameArrived() {
	s.guard.Lock()
	defer s.guard.Unlock()
	if s.closed.Load() {
		return
	}

	frame, err := s.source.TryGetNextFrame()
	if err != nil {
		slog.Debug("failed to get next frame", "error", err)
		return
	}
	if frame == nil {
		return
	}
	defer frame.Release()

	if !s.haveEpoch {
		s.epoch = frame.Time
		s.haveEpoch = true
	}
	ts := (frame.Time - s.epoch).Seconds()

	desc := frame.Texture.Desc()
	box := cropBox(s.target, frame.ContentWidth, frame.ContentHeight, desc.Width, desc.Height)
	if box.Empty() {
		slog.Debug("capture region outside surface", "bounds", s.target.String(),
			"surface", fmt.Sprintf("%dx%d", frame.ContentWidth, frame.ContentHeight))
		return
	}

	cropped, err := s.device.CreateTexture(gfx.NewDesc(box.Width(), box.Height(), gfx.UsageDefault))
	if err != nil {
		slog.Debug("failed to create cropped texture", "error", err)
		return
	}
	if err := s.device.CopyRegion(cropped, frame.Texture, box); err != nil {
		cropped.Release()
		slog.Debug("failed to crop frame", "error", err)
		return
	}

	s.mu.Lock()
	old := s.current
	if old != nil && !s.consumed {
		s.stats.Dropped++
	}
	s.current = cropped
	s.consumed = false
	s.frameTime = ts
	s.stats.Arrivals++

	if s.surfaceW != 0 && (s.surfaceW != frame.ContentWidth || s.surfaceH != frame.ContentHeight) {
		s.resized = true
		s.stats.Resizes++
		slog.Info("capture target resized",
			"from", fmt.Sprintf("%dx%d", s.surfaceW, s.surfaceH),
			"to", fmt.Sprintf("%dx%d", frame.ContentWidth, frame.ContentHeight),
		)
	}
	s.surfaceW, s.surfaceH = frame.ContentWidth, frame.ContentHeight

	newCropped := gfx.Box{Right: box.Width(), Bottom: box.Height()}
	if newCropped != s.cropped {
		s.cropped = newCropped
		s.captureBounds = newCropped
	}
	s.mu.Unlock()

	if old != nil {
		old.Release()
	}
	s.captureTimes.Push(ts)

	select {
	case s.arrived <- struct{}{}:
	default:
	}
}

// wait blocks until a frame arrives after the previous wait, the session
// closes, or timeout passes.
func (s *Session) wait(timeout time.Duration) (bool, error) {
	if s.closed.Load() {
		return false, errs.ErrClosed
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-s.arrived:
	case <-s.done:
		return false, errs.ErrClosed
	case <-t.C:
		return false, nil
	}

	if s.closed.Load() {
		return false, errs.ErrClosed
	}
	return true, nil
}

// WaitForNextFrame blocks up to timeout for a frame arrival. It returns
// false on timeout.
func (s *Session) WaitForNextFrame(timeout time.Duration) (bool, error) {
	return s.wait(timeout)
}

// ReadNextTexture waits for an arrival and returns a reference to the
// current cropped texture with its timestamp in seconds. The caller must
// Release the texture.
func (s *Session) ReadNextTexture(timeout time.Duration) (gfx.Texture, float64, error) {
	ok, err := s.wait(timeout)
	if err != nil {
		return nil, -1, err
	}
	if !ok {
		return nil, -1, fmt.Errorf("%w: no frame within %v", errs.ErrResourceTimeout, timeout)
	}
	return s.take()
}

// take returns a reference to the slot texture.
func (s *Session) take() (gfx.Texture, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, -1, errs.ErrClosed
	}
	if s.current == nil {
		return nil, -1, fmt.Errorf("%w: no frame captured yet", errs.ErrResourceTimeout)
	}
	s.current.AddRef()
	s.consumed = true
	return s.current, s.frameTime, nil
}

// ReadNextFrame waits for an arrival and copies the current frame into buf
// (see ReadPixels). It returns the frame timestamp in seconds.
func (s *Session) ReadNextFrame(timeout time.Duration, buf []byte) (float64, error) {
	tex, ts, err := s.ReadNextTexture(timeout)
	if err != nil {
		return 0, err
	}
	defer tex.Release()

	if err := s.readback(tex, buf); err != nil {
		return 0, err
	}
	return ts, nil
}

func (s *Session) readback(tex gfx.Texture, buf []byte) error {
	pitch, err := ReadPixels(s.device, tex, buf)
	if err != nil {
		return err
	}

	s.mu.Lock()
	desc := tex.Desc()
	if desc.Width == s.cropped.Width() && desc.Height == s.cropped.Height() {
		s.captureBounds = paddedBounds(s.cropped, pitch, desc.Format.BytesPerPixel())
	}
	s.mu.Unlock()
	return nil
}

// CaptureBounds returns the bounds a caller buffer must accommodate. It
// reads the current frame back once so the reported right edge includes
// any row pitch padding.
func (s *Session) CaptureBounds() (gfx.Box, error) {
	tex, _, err := s.take()
	if err != nil {
		// Nothing captured yet; wait for the first frame.
		ok, werr := s.wait(FirstFrameTimeout)
		if werr != nil {
			return gfx.Box{}, werr
		}
		if !ok {
			return gfx.Box{}, fmt.Errorf("%w: no frame within %v", errs.ErrResourceTimeout, FirstFrameTimeout)
		}
		if tex, _, err = s.take(); err != nil {
			return gfx.Box{}, err
		}
	}
	defer tex.Release()

	if err := s.readback(tex, nil); err != nil {
		return gfx.Box{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captureBounds, nil
}

// CroppedBounds returns the size of the textures the session produces.
func (s *Session) CroppedBounds() gfx.Box {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cropped
}

// ResolutionChanged reports whether the capture target changed size since
// the last call.
func (s *Session) ResolutionChanged() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.resized
	s.resized = false
	return r
}

// CaptureTimes copies every arrival time (seconds since the first
// frame) into dst and returns the count. A nil dst returns how many exist.
func (s *Session) CaptureTimes(dst []float64) int {
	return s.captureTimes.CopyTo(dst)
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Close stops the capture. The arrival callback is detached before the
// guard is taken, so once Close returns no callback touches the session.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.source.Unsubscribe()

		s.guard.Lock()
		s.closed.Store(true)
		s.mu.Lock()
		cur := s.current
		s.current = nil
		s.mu.Unlock()
		s.guard.Unlock()

		if cur != nil {
			cur.Release()
		}
		close(s.done)

		// The source goroutine may be parked on guard; it has to be able to
		// finish before the source waits for it.
		err = s.source.Close()

		stats := s.Stats()
		slog.Info("capture closed",
			"arrivals", stats.Arrivals,
			"dropped", stats.Dropped,
			"resizes", stats.Resizes,
		)
	})
	return err
}
