package encoder

import (
	"screenrec/internal/capture"
	"screenrec/internal/gfx"
)

// PixelReader reads textures back into tightly packed BGRA frames of a
// fixed size. Textures of another size are cropped or padded with black,
// which happens when the capture target is resized mid-job.
type PixelReader struct {
	device gfx.Device
	width  int
	height int
	raw    []byte
	frame  []byte
}

func NewPixelReader(device gfx.Device, width, height int) *PixelReader {
	return &PixelReader{
		device: device,
		width:  width,
		height: height,
		frame:  make([]byte, width*height*4),
	}
}

// FrameSize returns the byte size of a frame.
func (r *PixelReader) FrameSize() int {
	return len(r.frame)
}

// Read returns the frame held in tex. The slice is reused by the next Read.
func (r *PixelReader) Read(tex gfx.Texture) ([]byte, error) {
	d := tex.Desc()
	bpp := d.Format.BytesPerPixel()
	need := d.Width * d.Height * bpp
	if cap(r.raw) < need {
		r.raw = make([]byte, need)
	}
	raw := r.raw[:need]

	if _, err := capture.ReadPixels(r.device, tex, raw); err != nil {
		return nil, err
	}
	fitPixels(r.frame, r.width, r.height, raw, d.Width*bpp, d.Width, d.Height)
	return r.frame, nil
}

func fitPixels(dst []byte, dstW, dstH int, src []byte, srcStride, srcW, srcH int) {
	w := min(dstW, srcW) * 4
	h := min(dstH, srcH)
	dstStride := dstW * 4
	for y := 0; y < dstH; y++ {
		row := dst[y*dstStride : (y+1)*dstStride]
		if y >= h {
			clear(row)
			continue
		}
		n := copy(row[:w], src[y*srcStride:y*srcStride+w])
		clear(row[n:])
	}
}
