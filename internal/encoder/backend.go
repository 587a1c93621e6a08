// Package encoder turns captured textures into an H.264 MP4 file through
// interchangeable backends.
package encoder

import (
	"screenrec/internal/gfx"
)

// Backend encodes one job. Initialize is called once, then SubmitFrame
// for every sample with non-decreasing pts in seconds. Finalize writes the
// container trailer and is only called when every previous call
// succeeded. Close releases everything and is always called last.
type Backend interface {
	Name() string
	Initialize(job Job) error
	SubmitFrame(tex gfx.Texture, pts float64) error
	Finalize() error
	Close() error
	// ErrorMessage describes the last failure in the backend's own terms.
	ErrorMessage() string
}

// Factory creates a backend bound to the graphics device frames live on.
type Factory func(device gfx.Device) Backend
