package capture

import (
	"time"

	"screenrec/internal/display"
	"screenrec/internal/gfx"
)

// Frame is one surface handed out by a Source. The receiver owns the
// texture reference and must call Release.
type Frame struct {
	Texture gfx.Texture
	// ContentWidth and ContentHeight are the valid pixels of Texture; the
	// texture itself may be larger.
	ContentWidth  int
	ContentHeight int
	// Time is the source's own monotonic capture time.
	Time time.Duration
}

func (f *Frame) Release() {
	if f != nil && f.Texture != nil {
		f.Texture.Release()
		f.Texture = nil
	}
}

// Source delivers frames of one capture target. onArrived runs on a
// goroutine owned by the source; the session pulls the frame from inside
// the callback with TryGetNextFrame.
type Source interface {
	Start(onArrived func()) error
	// Unsubscribe detaches the arrival callback. Invocations already
	// running may still complete.
	Unsubscribe()
	// TryGetNextFrame returns the newest undelivered frame or nil.
	TryGetNextFrame() (*Frame, error)
	Close() error
}

// Target is what a Source captures.
type Target struct {
	Display *display.Display
}

// Platform opens capture sources. Supported reports whether the platform
// can capture at all on this machine.
type Platform interface {
	Name() string
	Supported() bool
	OpenSource(device gfx.Device, target Target, format gfx.Format, cursor bool) (Source, error)
}

// Uploader is implemented by devices whose textures can be filled from CPU
// memory. CPU-side sources need it.
type Uploader interface {
	Upload(t gfx.Texture, pix []byte, stride int) error
}
