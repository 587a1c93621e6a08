//go:build windows

package capture

import (
	"errors"
	"fmt"
	"image"
	"runtime"

	"github.com/kbinani/screenshot"
	"github.com/kirides/go-d3d/d3d11"
	"github.com/kirides/go-d3d/outputduplication"

	"screenrec/internal/gfx"
)

// DuplicationPlatform captures with DXGI desktop duplication, which only
// delivers frames when the desktop changed.
type DuplicationPlatform struct {
	Rate int
}

func (p DuplicationPlatform) Name() string { return "dxgi" }

func (p DuplicationPlatform) Supported() bool {
	device, ctx, err := d3d11.NewD3D11Device()
	if err != nil {
		return false
	}
	ctx.Release()
	device.Release()
	return true
}

func (p DuplicationPlatform) OpenSource(device gfx.Device, target Target, format gfx.Format, cursor bool) (Source, error) {
	if target.Display == nil {
		return nil, fmt.Errorf("no display to capture")
	}
	g, err := newDuplicationGrabber(target.Display.Index)
	if err != nil {
		return nil, err
	}
	d := target.Display
	bounds := image.Rect(0, 0, d.Width, d.Height)
	src, err := newPollSource(p.Name(), device, g, bounds, p.Rate)
	if err != nil {
		g.close()
		return nil, err
	}
	return src, nil
}

type duplicationGrabber struct {
	device *d3d11.ID3D11Device
	ctx    *d3d11.ID3D11DeviceContext
	ddup   *outputduplication.OutputDuplicator
}

func newDuplicationGrabber(output int) (*duplicationGrabber, error) {
	if output >= screenshot.NumActiveDisplays() {
		return nil, fmt.Errorf("display %d is not active", output)
	}

	// D3D11 keeps thread local state; the grabber is used from one
	// goroutine, which is pinned on first grab.
	device, ctx, err := d3d11.NewD3D11Device()
	if err != nil {
		return nil, fmt.Errorf("create d3d11 device: %w", err)
	}
	ddup, err := outputduplication.NewIDXGIOutputDuplication(device, ctx, uint(output))
	if err != nil {
		ctx.Release()
		device.Release()
		return nil, fmt.Errorf("create output duplication: %w", err)
	}
	return &duplicationGrabber{device: device, ctx: ctx, ddup: ddup}, nil
}

func (g *duplicationGrabber) grab(img *image.RGBA) (bool, error) {
	runtime.LockOSThread()
	err := g.ddup.GetImage(img, 0)
	if errors.Is(err, outputduplication.ErrNoImageYet) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *duplicationGrabber) close() error {
	g.ddup.Release()
	g.ctx.Release()
	g.device.Release()
	return nil
}
