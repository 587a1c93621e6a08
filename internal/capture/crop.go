package capture

import "screenrec/internal/gfx"

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// cropBox clamps the requested bounds against a surface whose valid
// content is contentW x contentH inside a texW x texH texture. A resized
// capture target shrinks the box instead of failing.
func cropBox(requested gfx.Box, contentW, contentH, texW, texH int) gfx.Box {
	w := clamp(contentW, 0, texW)
	h := clamp(contentH, 0, texH)
	return gfx.Box{
		Left:   clamp(requested.Left, 0, w),
		Top:    clamp(requested.Top, 0, h),
		Right:  clamp(requested.Right, 0, w),
		Bottom: clamp(requested.Bottom, 0, h),
	}
}

// paddedBounds widens the cropped bounds to the row pitch a readback
// reported, so callers size their buffers for the padded rows.
func paddedBounds(cropped gfx.Box, rowPitch, bytesPerPixel int) gfx.Box {
	bounds := cropped
	w := cropped.Width()
	if bytesPerPixel > 0 && rowPitch != w*bytesPerPixel {
		bounds.Right = bounds.Left + rowPitch/bytesPerPixel
	}
	return bounds
}
