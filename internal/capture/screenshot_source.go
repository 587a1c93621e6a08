package capture

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/kbinani/screenshot"

	"screenrec/internal/gfx"
)

// ScreenshotPlatform captures by copying the desktop through the OS
// screenshot API at a fixed rate. It works everywhere kbinani/screenshot
// does, at the cost of a CPU copy per frame.
type ScreenshotPlatform struct {
	Rate int
}

func (p ScreenshotPlatform) Name() string { return "screenshot" }

func (p ScreenshotPlatform) Supported() bool {
	return screenshot.NumActiveDisplays() > 0
}

func (p ScreenshotPlatform) OpenSource(device gfx.Device, target Target, format gfx.Format, cursor bool) (Source, error) {
	if target.Display == nil {
		return nil, fmt.Errorf("no display to capture")
	}
	if cursor {
		slog.Debug("screenshot source does not draw the cursor")
	}
	d := target.Display
	bounds := image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height)
	return newPollSource(p.Name(), device, screenshotGrabber{bounds: bounds}, bounds, p.Rate)
}

type screenshotGrabber struct {
	bounds image.Rectangle
}

func (g screenshotGrabber) grab(img *image.RGBA) (bool, error) {
	shot, err := screenshot.CaptureRect(g.bounds)
	if err != nil {
		return false, err
	}
	copy(img.Pix, shot.Pix)
	return true, nil
}

func (g screenshotGrabber) close() error { return nil }
