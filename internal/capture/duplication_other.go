//go:build !windows

package capture

import (
	"errors"

	"screenrec/internal/gfx"
)

// DuplicationPlatform is only available on Windows.
type DuplicationPlatform struct {
	Rate int
}

func (p DuplicationPlatform) Name() string    { return "dxgi" }
func (p DuplicationPlatform) Supported() bool { return false }

func (p DuplicationPlatform) OpenSource(gfx.Device, Target, gfx.Format, bool) (Source, error) {
	return nil, errors.New("desktop duplication requires windows")
}
