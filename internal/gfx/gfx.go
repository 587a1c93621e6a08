// Package gfx describes the GPU capabilities the capture pipeline relies on:
// 2D textures, sub-region copies and CPU mapping of staging resources.
package gfx

import "fmt"

// Format is a texture pixel format.
type Format int

const (
	FormatUnknown Format = iota
	// FormatBGRA8 is 8 bits per channel, blue first. It is the only
	// format the capture pipeline produces.
	FormatBGRA8
)

func (f Format) String() string {
	switch f {
	case FormatBGRA8:
		return "bgra8"
	}
	return "unknown"
}

// BytesPerPixel returns the pixel size of f.
func (f Format) BytesPerPixel() int {
	if f == FormatBGRA8 {
		return 4
	}
	return 0
}

// Usage tells the device where a texture lives.
type Usage int

const (
	UsageDefault Usage = iota
	// UsageStaging textures can be mapped for CPU reads.
	UsageStaging
)

// Desc describes a 2D texture.
type Desc struct {
	Width       int
	Height      int
	MipLevels   int
	ArraySize   int
	SampleCount int
	Format      Format
	Usage       Usage
}

// NewDesc returns a single-sample, single-mip BGRA description.
func NewDesc(width, height int, usage Usage) Desc {
	return Desc{
		Width:       width,
		Height:      height,
		MipLevels:   1,
		ArraySize:   1,
		SampleCount: 1,
		Format:      FormatBGRA8,
		Usage:       usage,
	}
}

// Box is a half-open pixel region [Left,Right) x [Top,Bottom).
type Box struct {
	Left, Top, Right, Bottom int
}

func (b Box) Width() int  { return b.Right - b.Left }
func (b Box) Height() int { return b.Bottom - b.Top }
func (b Box) Empty() bool { return b.Width() <= 0 || b.Height() <= 0 }

func (b Box) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", b.Left, b.Top, b.Right, b.Bottom)
}

// Texture is a reference counted GPU resource. A texture starts with one
// reference owned by its creator.
type Texture interface {
	Desc() Desc
	AddRef()
	Release()
}

// Mapped is a CPU view of a staging texture. Rows are RowPitch bytes
// apart, which may exceed Width*4.
type Mapped struct {
	Data     []byte
	RowPitch int
}

// Device creates textures and runs copies on its immediate context.
type Device interface {
	CreateTexture(desc Desc) (Texture, error)
	// CopyRegion copies box of src into dst at the origin.
	CopyRegion(dst, src Texture, box Box) error
	// CopyResource copies all of src into dst; sizes must match.
	CopyResource(dst, src Texture) error
	Map(t Texture) (Mapped, error)
	Unmap(t Texture)
}
