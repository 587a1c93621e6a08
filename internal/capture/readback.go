package capture

import (
	"fmt"

	"screenrec/internal/errs"
	"screenrec/internal/gfx"
)

// ReadPixels copies tex into buf through a CPU mappable staging copy and
// returns the staging row pitch.
//
// When the row pitch equals the tight row width the copy is a single block.
// Otherwise rows are copied one by one, taking min(len(buf)/height, pitch)
// bytes of each row, so a tightly sized buffer receives exactly width*4
// bytes per row with the alignment padding stripped. A nil buf only maps
// and unmaps, which resolves the pitch without copying.
func ReadPixels(device gfx.Device, tex gfx.Texture, buf []byte) (int, error) {
	desc := tex.Desc()
	switch {
	case desc.SampleCount != 1:
		return 0, fmt.Errorf("%w: sample count %d, want 1", errs.ErrConfiguration, desc.SampleCount)
	case desc.MipLevels != 1:
		return 0, fmt.Errorf("%w: mip levels %d, want 1", errs.ErrConfiguration, desc.MipLevels)
	case desc.ArraySize != 1:
		return 0, fmt.Errorf("%w: array size %d, want 1", errs.ErrConfiguration, desc.ArraySize)
	case desc.Format != gfx.FormatBGRA8:
		return 0, fmt.Errorf("%w: format %s, want %s", errs.ErrConfiguration, desc.Format, gfx.FormatBGRA8)
	}

	stagingDesc := desc
	stagingDesc.Usage = gfx.UsageStaging
	staging, err := device.CreateTexture(stagingDesc)
	if err != nil {
		return 0, fmt.Errorf("%w: create staging texture: %v", errs.ErrPlatformAPI, err)
	}
	defer staging.Release()

	if err := device.CopyResource(staging, tex); err != nil {
		return 0, fmt.Errorf("%w: copy to staging: %v", errs.ErrPlatformAPI, err)
	}

	mapped, err := device.Map(staging)
	if err != nil {
		return 0, fmt.Errorf("%w: map staging texture: %v", errs.ErrPlatformAPI, err)
	}
	defer device.Unmap(staging)

	pitch := mapped.RowPitch
	if buf == nil {
		return pitch, nil
	}

	rowBytes := desc.Width * desc.Format.BytesPerPixel()
	if pitch == rowBytes {
		copy(buf, mapped.Data[:min(len(mapped.Data), pitch*desc.Height)])
		return pitch, nil
	}

	dstRow := len(buf) / desc.Height
	n := min(dstRow, pitch)
	if n <= 0 {
		return pitch, nil
	}
	for y := 0; y < desc.Height; y++ {
		src := mapped.Data[y*pitch:]
		copy(buf[y*dstRow:y*dstRow+n], src[:min(n, len(src))])
	}
	return pitch, nil
}
