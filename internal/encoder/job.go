package encoder

import (
	"fmt"

	"screenrec/internal/errs"
)

// GOPSize and MaxBFrames keep latency low: short groups of pictures and
// at most one B-frame between references.
const (
	GOPSize    = 10
	MaxBFrames = 1
)

// Properties are the caller supplied job settings.
type Properties struct {
	// BitrateInBps of 0 derives the bitrate from Quality.
	BitrateInBps int     `json:"bitrateInBps"`
	FrameRate    int     `json:"frameRate"`
	Quality      Quality `json:"quality"`
	// Seconds of 0 records until stopped.
	Seconds     int  `json:"seconds"`
	MemoryCache bool `json:"memory_cache"`
}

// Job is a validated encode request.
type Job struct {
	Properties
	Width       int
	Height      int
	Destination string
}

// NormalizeDimensions truncates odd sizes to even ones, which H.264 with
// 4:2:0 chroma requires.
func NormalizeDimensions(width, height int) (int, int, error) {
	w, h := width&^1, height&^1
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: invalid frame size %dx%d", errs.ErrConfiguration, width, height)
	}
	return w, h, nil
}

// NewJob validates props for a width x height capture. A zero bitrate is
// replaced by the quality default and written back into the returned job.
func NewJob(props Properties, width, height int, destination string) (Job, error) {
	w, h, err := NormalizeDimensions(width, height)
	if err != nil {
		return Job{}, err
	}
	if props.FrameRate <= 0 {
		return Job{}, fmt.Errorf("%w: frame rate must be positive, got %d", errs.ErrConfiguration, props.FrameRate)
	}
	if !props.Quality.Valid() {
		return Job{}, fmt.Errorf("%w: unknown quality %d", errs.ErrInvalidProfile, props.Quality)
	}
	if props.BitrateInBps < 0 {
		return Job{}, fmt.Errorf("%w: negative bitrate %d", errs.ErrConfiguration, props.BitrateInBps)
	}
	if props.Seconds < 0 {
		return Job{}, fmt.Errorf("%w: negative duration %d", errs.ErrConfiguration, props.Seconds)
	}
	if destination == "" {
		return Job{}, fmt.Errorf("%w: no destination path", errs.ErrConfiguration)
	}

	if props.BitrateInBps == 0 {
		props.BitrateInBps = BestBitrate(props.Quality, props.FrameRate)
	}
	return Job{Properties: props, Width: w, Height: h, Destination: destination}, nil
}

func (j Job) String() string {
	return fmt.Sprintf("%dx%d@%d %dbps %s", j.Width, j.Height, j.FrameRate, j.BitrateInBps, j.Destination)
}
