package capture

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"screenrec/internal/gfx"
)

// grabber produces desktop images for a pollSource.
type grabber interface {
	// grab fills img with the current desktop image. It returns false when
	// nothing changed since the previous grab.
	grab(img *image.RGBA) (bool, error)
	close() error
}

// pollSource turns a pull style desktop grabber into a Source: a goroutine
// grabs at a fixed interval, uploads the image into a texture, parks it as
// the pending frame and fires the arrival callback.
type pollSource struct {
	name     string
	device   gfx.Device
	uploader Uploader
	grabber  grabber
	bounds   image.Rectangle
	interval time.Duration

	mu        sync.Mutex
	onArrived func()
	pending   *Frame

	start time.Time
	bgra  []byte
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func newPollSource(name string, device gfx.Device, g grabber, bounds image.Rectangle, rate int) (*pollSource, error) {
	up, ok := device.(Uploader)
	if !ok {
		return nil, fmt.Errorf("%s source needs a device that accepts CPU uploads", name)
	}
	if rate <= 0 {
		rate = 60
	}
	return &pollSource{
		name:     name,
		device:   device,
		uploader: up,
		grabber:  g,
		bounds:   bounds,
		interval: time.Second / time.Duration(rate),
		bgra:     make([]byte, bounds.Dx()*bounds.Dy()*4),
		stop:     make(chan struct{}),
	}, nil
}

func (s *pollSource) Start(onArrived func()) error {
	s.mu.Lock()
	s.onArrived = onArrived
	s.mu.Unlock()

	s.start = time.Now()
	s.wg.Add(1)
	go s.loop()
	return nil
}

func (s *pollSource) loop() {
	defer s.wg.Done()

	img := image.NewRGBA(image.Rect(0, 0, s.bounds.Dx(), s.bounds.Dy()))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		changed, err := s.grabber.grab(img)
		if err != nil {
			slog.Debug("desktop grab failed", "source", s.name, "error", err)
			continue
		}
		if !changed {
			continue
		}

		frame, err := s.toFrame(img)
		if err != nil {
			slog.Debug("failed to upload frame", "source", s.name, "error", err)
			continue
		}

		s.mu.Lock()
		old := s.pending
		s.pending = frame
		cb := s.onArrived
		s.mu.Unlock()
		old.Release()

		if cb != nil {
			cb()
		}
	}
}

func (s *pollSource) toFrame(img *image.RGBA) (*Frame, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	rgbaToBGRA(s.bgra, img.Pix, img.Stride, w, h)

	tex, err := s.device.CreateTexture(gfx.NewDesc(w, h, gfx.UsageDefault))
	if err != nil {
		return nil, err
	}
	if err := s.uploader.Upload(tex, s.bgra, w*4); err != nil {
		tex.Release()
		return nil, err
	}
	return &Frame{
		Texture:       tex,
		ContentWidth:  w,
		ContentHeight: h,
		Time:          time.Since(s.start),
	}, nil
}

func (s *pollSource) Unsubscribe() {
	s.mu.Lock()
	s.onArrived = nil
	s.mu.Unlock()
}

func (s *pollSource) TryGetNextFrame() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.pending
	s.pending = nil
	return f, nil
}

func (s *pollSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()

		s.mu.Lock()
		s.pending.Release()
		s.pending = nil
		s.mu.Unlock()

		err = s.grabber.close()
	})
	return err
}

// rgbaToBGRA swaps the red and blue channels of w x h pixels from src rows
// of stride bytes into tightly packed dst.
func rgbaToBGRA(dst, src []byte, stride, w, h int) {
	for y := 0; y < h; y++ {
		s := src[y*stride : y*stride+w*4]
		d := dst[y*w*4 : (y+1)*w*4]
		for i := 0; i < len(s); i += 4 {
			d[i] = s[i+2]
			d[i+1] = s[i+1]
			d[i+2] = s[i]
			d[i+3] = s[i+3]
		}
	}
}
