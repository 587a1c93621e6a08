package gfx

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrForeignTexture = errors.New("texture belongs to another device")
	ErrNotMappable    = errors.New("texture is not a staging resource")
	ErrReleased       = errors.New("texture already released")
)

// MemoryDevice keeps textures in system memory. Rows are padded to
// PitchAlign bytes the way hardware drivers pad them, so callers see the
// same row pitch effects as with a real adapter.
type MemoryDevice struct {
	pitchAlign int

	live    atomic.Int64
	created atomic.Int64
}

// NewMemoryDevice creates a device that aligns row pitch to pitchAlign
// bytes. Values below 4 mean tightly packed rows.
func NewMemoryDevice(pitchAlign int) *MemoryDevice {
	if pitchAlign < 4 {
		pitchAlign = 4
	}
	return &MemoryDevice{pitchAlign: pitchAlign}
}

// LiveTextures returns the number of textures not yet fully released.
func (d *MemoryDevice) LiveTextures() int64 {
	return d.live.Load()
}

// CreatedTextures returns how many textures the device has allocated.
func (d *MemoryDevice) CreatedTextures() int64 {
	return d.created.Load()
}

func (d *MemoryDevice) CreateTexture(desc Desc) (Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("invalid texture size %dx%d", desc.Width, desc.Height)
	}
	bpp := desc.Format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("unsupported texture format %s", desc.Format)
	}

	pitch := alignUp(desc.Width*bpp, d.pitchAlign)
	t := &MemoryTexture{
		device: d,
		desc:   desc,
		pitch:  pitch,
		pix:    make([]byte, pitch*desc.Height),
	}
	t.refs.Store(1)
	d.live.Add(1)
	d.created.Add(1)
	return t, nil
}

func (d *MemoryDevice) CopyRegion(dst, src Texture, box Box) error {
	s, err := d.own(src)
	if err != nil {
		return err
	}
	t, err := d.own(dst)
	if err != nil {
		return err
	}
	if box.Empty() || box.Left < 0 || box.Top < 0 || box.Right > s.desc.Width || box.Bottom > s.desc.Height {
		return fmt.Errorf("copy box %s outside source %dx%d", box, s.desc.Width, s.desc.Height)
	}

	bpp := s.desc.Format.BytesPerPixel()
	w := min(box.Width(), t.desc.Width)
	h := min(box.Height(), t.desc.Height)

	s.mu.RLock()
	defer s.mu.RUnlock()
	t.mu.Lock()
	defer t.mu.Unlock()

	for y := 0; y < h; y++ {
		so := (box.Top+y)*s.pitch + box.Left*bpp
		to := y * t.pitch
		copy(t.pix[to:to+w*bpp], s.pix[so:so+w*bpp])
	}
	return nil
}

func (d *MemoryDevice) CopyResource(dst, src Texture) error {
	s, err := d.own(src)
	if err != nil {
		return err
	}
	if _, err := d.own(dst); err != nil {
		return err
	}
	dd := dst.Desc()
	if dd.Width != s.desc.Width || dd.Height != s.desc.Height {
		return fmt.Errorf("copy resource size mismatch %dx%d -> %dx%d",
			s.desc.Width, s.desc.Height, dd.Width, dd.Height)
	}
	return d.CopyRegion(dst, src, Box{Right: s.desc.Width, Bottom: s.desc.Height})
}

func (d *MemoryDevice) Map(tex Texture) (Mapped, error) {
	t, err := d.own(tex)
	if err != nil {
		return Mapped{}, err
	}
	if t.desc.Usage != UsageStaging {
		return Mapped{}, ErrNotMappable
	}
	t.mu.Lock()
	return Mapped{Data: t.pix, RowPitch: t.pitch}, nil
}

func (d *MemoryDevice) Unmap(tex Texture) {
	if t, err := d.own(tex); err == nil {
		t.mu.Unlock()
	}
}

// Upload writes BGRA rows of stride bytes into t. Sources use it to turn
// a CPU capture into a texture.
func (d *MemoryDevice) Upload(tex Texture, pix []byte, stride int) error {
	t, err := d.own(tex)
	if err != nil {
		return err
	}
	row := t.desc.Width * t.desc.Format.BytesPerPixel()
	if stride < row || len(pix) < stride*(t.desc.Height-1)+row {
		return fmt.Errorf("upload buffer too small for %dx%d", t.desc.Width, t.desc.Height)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for y := 0; y < t.desc.Height; y++ {
		copy(t.pix[y*t.pitch:y*t.pitch+row], pix[y*stride:y*stride+row])
	}
	return nil
}

func (d *MemoryDevice) own(tex Texture) (*MemoryTexture, error) {
	t, ok := tex.(*MemoryTexture)
	if !ok || t.device != d {
		return nil, ErrForeignTexture
	}
	if t.refs.Load() <= 0 {
		return nil, ErrReleased
	}
	return t, nil
}

// MemoryTexture is a texture allocated by a MemoryDevice.
type MemoryTexture struct {
	device *MemoryDevice
	desc   Desc
	pitch  int
	refs   atomic.Int32

	mu  sync.RWMutex
	pix []byte
}

func (t *MemoryTexture) Desc() Desc { return t.desc }

// RowPitch returns the padded row size in bytes.
func (t *MemoryTexture) RowPitch() int { return t.pitch }

func (t *MemoryTexture) AddRef() {
	t.refs.Add(1)
}

func (t *MemoryTexture) Release() {
	if n := t.refs.Add(-1); n == 0 {
		t.device.live.Add(-1)
	}
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}
