package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"screenrec/internal/capture"
	"screenrec/internal/coordinator"
	"screenrec/internal/display"
	"screenrec/internal/encoder"
	"screenrec/internal/errs"
	"screenrec/internal/gfx"
	"screenrec/internal/registry"
	"screenrec/internal/timer"
)

// ReadTimeout is how long ReadNextFrame waits for a frame.
const ReadTimeout = 10 * time.Second

// Status represents the current application state
type Status string

const (
	StatusIdle      Status = "idle"
	StatusCapturing Status = "capturing"
	StatusEncoding  Status = "encoding"
	StatusError     Status = "error"
)

// Options wire the App to its collaborators. Zero fields get the
// production defaults.
type Options struct {
	Device   gfx.Device
	Platform capture.Platform
	// Displays enumerates monitors for StartCapture.
	Displays func() (display.DisplayList, error)
	Backends map[string]encoder.Factory
	Backend  string
}

// App owns capture sessions behind integer handles and the encoder that
// records them. All methods are safe for concurrent use.
type App struct {
	device   gfx.Device
	platform capture.Platform
	displays func() (display.DisplayList, error)
	backends map[string]encoder.Factory

	sessions *registry.Registry[capture.Session]
	coord    *coordinator.Coordinator

	mu      sync.Mutex
	backend string
	factory encoder.Factory
	failed  bool
	clock   *timer.Timer

	// OnStateChange, when set, is called after every status transition.
	OnStateChange func(Status)
}

// New creates an App. Options.Platform and Options.Backends are required.
func New(opts Options) (*App, error) {
	if opts.Platform == nil {
		return nil, fmt.Errorf("%w: no capture platform", errs.ErrConfiguration)
	}
	if len(opts.Backends) == 0 {
		return nil, fmt.Errorf("%w: no encoder backends", errs.ErrConfiguration)
	}
	if opts.Device == nil {
		opts.Device = gfx.NewMemoryDevice(256)
	}
	if opts.Displays == nil {
		opts.Displays = display.DetectDisplays
	}

	a := &App{
		device:   opts.Device,
		platform: opts.Platform,
		displays: opts.Displays,
		backends: opts.Backends,
		sessions: registry.New[capture.Session](),
	}
	a.coord = coordinator.New(a.device, a.newBackend)

	name := opts.Backend
	if name == "" {
		name = BackendLibrary
	}
	if err := a.SetBackend(name); err != nil {
		return nil, err
	}
	return a, nil
}

// SetBackend selects the encoder backend used by the next EncodeVideo.
func (a *App) SetBackend(name string) error {
	f, ok := a.backends[name]
	if !ok || f == nil {
		return fmt.Errorf("%w: unknown backend %q", errs.ErrConfiguration, name)
	}
	a.mu.Lock()
	a.backend = name
	a.factory = f
	a.mu.Unlock()
	return nil
}

func (a *App) Backend() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.backend
}

func (a *App) newBackend(device gfx.Device) encoder.Backend {
	a.mu.Lock()
	f := a.factory
	a.mu.Unlock()
	return f(device)
}

// Status derives the application state from the encoder and the open
// sessions.
func (a *App) Status() Status {
	if a.coord.State() == coordinator.StateRunning {
		return StatusEncoding
	}
	if a.sessions.Len() > 0 {
		return StatusCapturing
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failed {
		return StatusError
	}
	return StatusIdle
}

func (a *App) notify() {
	if a.OnStateChange != nil {
		a.OnStateChange(a.Status())
	}
}

// StartCapture begins capturing the screen rectangle (x, y, width, height)
// on the monitor that fully contains it and returns the session handle.
func (a *App) StartCapture(x, y, width, height int, cursor bool) (int, error) {
	displays, err := a.displays()
	if err != nil {
		return -1, fmt.Errorf("%w: enumerate displays: %v", errs.ErrPlatformAPI, err)
	}
	d, bounds, err := displays.FindContaining(x, y, width, height)
	if err != nil {
		return -1, err
	}

	s, err := capture.Start(capture.Options{
		Device:   a.device,
		Platform: a.platform,
		Target:   capture.Target{Display: d},
		Format:   gfx.FormatBGRA8,
		Bounds:   bounds,
		Cursor:   cursor,
	})
	if err != nil {
		return -1, err
	}

	h := a.sessions.Add(s)
	slog.Info("capture session opened",
		"handle", h,
		"display", d.String(),
		"region", fmt.Sprintf("%dx%d+%d+%d", width, height, x, y),
	)
	a.notify()
	return h, nil
}

// StopCapture closes the session behind handle and frees the handle.
func (a *App) StopCapture(handle int) error {
	s, err := a.sessions.Remove(handle)
	if err != nil {
		return err
	}
	err = s.Close()
	a.notify()
	return err
}

func (a *App) session(handle int) (*capture.Session, error) {
	return a.sessions.Get(handle)
}

// WaitForNextFrame blocks up to timeoutMs for a frame arrival.
func (a *App) WaitForNextFrame(handle int, timeoutMs int) (bool, error) {
	if timeoutMs < 0 {
		return false, fmt.Errorf("%w: negative timeout", errs.ErrConfiguration)
	}
	s, err := a.session(handle)
	if err != nil {
		return false, err
	}
	return s.WaitForNextFrame(time.Duration(timeoutMs) * time.Millisecond)
}

// ReadNextFrame waits for the next frame and copies it into buf. The
// buffer layout follows GetCaptureBounds: rows are Right-Left pixels wide.
// It returns the frame timestamp in seconds.
func (a *App) ReadNextFrame(handle int, buf []byte) (float64, error) {
	s, err := a.session(handle)
	if err != nil {
		return 0, err
	}
	return s.ReadNextFrame(ReadTimeout, buf)
}

// GetCaptureBounds returns the rectangle a ReadNextFrame buffer must hold.
func (a *App) GetCaptureBounds(handle int) (gfx.Box, error) {
	s, err := a.session(handle)
	if err != nil {
		return gfx.Box{}, err
	}
	return s.CaptureBounds()
}

// ResolutionChanged reports and clears the session's resize flag.
func (a *App) ResolutionChanged(handle int) (bool, error) {
	s, err := a.session(handle)
	if err != nil {
		return false, err
	}
	return s.ResolutionChanged(), nil
}

// GetCaptureTimes copies the session's frame arrival times into dst. A
// nil dst returns how many are available.
func (a *App) GetCaptureTimes(handle int, dst []float64) (int, error) {
	s, err := a.session(handle)
	if err != nil {
		return 0, err
	}
	return s.CaptureTimes(dst), nil
}

// EncodeVideo records the session behind handle into path until
// StopEncoding, ctx cancellation, props.Seconds or a failure. The result
// code is errs.CodeOK on success; GetErrorMessage turns any other code
// into text.
func (a *App) EncodeVideo(ctx context.Context, handle int, path string, props encoder.Properties) (int, error) {
	s, err := a.session(handle)
	if err != nil {
		return errs.Code(err), err
	}

	done := make(chan struct{})
	if a.OnStateChange != nil {
		go a.watchStart(done)
	}

	code, err := a.coord.Encode(ctx, s, props, path)
	close(done)

	if code != errs.CodeEncoderBusy {
		a.mu.Lock()
		a.failed = err != nil
		a.mu.Unlock()
	}
	a.notify()
	return code, err
}

// watchStart reports the transition to encoding once the coordinator has
// claimed the job.
func (a *App) watchStart(done <-chan struct{}) {
	t := time.NewTicker(5 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if a.coord.State() == coordinator.StateRunning {
				a.notify()
				return
			}
		}
	}
}

// StopEncoding asks the running encode to finish. The file is still
// finalized.
func (a *App) StopEncoding() {
	a.coord.Stop()
}

// GetSampleTimes copies the timestamps of the samples the last encode
// submitted into dst. A nil dst returns how many are available.
func (a *App) GetSampleTimes(dst []float64) int {
	return a.coord.SampleTimes(dst)
}

// LastJob returns the settings the last encode used, with the derived
// bitrate and normalized dimensions.
func (a *App) LastJob() encoder.Job {
	return a.coord.LastJob()
}

// GetErrorMessage returns the text for a result code.
func (a *App) GetErrorMessage(code int) string {
	return errs.Message(code)
}

// SleepMicroseconds blocks for usec microseconds on the high resolution
// timer.
func (a *App) SleepMicroseconds(usec int64) error {
	a.mu.Lock()
	if a.clock == nil {
		t, err := timer.New()
		if err != nil {
			a.mu.Unlock()
			return err
		}
		a.clock = t
	}
	clock := a.clock
	a.mu.Unlock()
	return clock.Sleep(usec)
}

// Close stops any encode and closes every open session.
func (a *App) Close() error {
	a.coord.Stop()

	var errList []error
	for _, s := range a.sessions.Drain() {
		if err := s.Close(); err != nil {
			errList = append(errList, err)
		}
	}

	a.mu.Lock()
	clock := a.clock
	a.clock = nil
	a.mu.Unlock()
	if clock != nil {
		if err := clock.Close(); err != nil {
			errList = append(errList, err)
		}
	}

	return errors.Join(errList...)
}

// SelectPlatform resolves a Config.Source name to a capture platform.
// "auto" prefers DXGI duplication where the machine supports it.
func SelectPlatform(source string, rate int) (capture.Platform, error) {
	dxgi := capture.DuplicationPlatform{Rate: rate}
	shot := capture.ScreenshotPlatform{Rate: rate}

	switch source {
	case SourceDXGI:
		if !dxgi.Supported() {
			return nil, fmt.Errorf("%w: dxgi duplication", errs.ErrCaptureUnsupported)
		}
		return dxgi, nil
	case SourceScreenshot:
		return shot, nil
	case SourceAuto, "":
		if dxgi.Supported() {
			return dxgi, nil
		}
		return shot, nil
	}
	return nil, fmt.Errorf("%w: unknown capture source %q", errs.ErrConfiguration, source)
}
