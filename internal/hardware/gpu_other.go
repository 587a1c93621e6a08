//go:build !windows

package hardware

const defaultFFmpegPath = "ffmpeg"

// DetectGPUs returns no GPUs; only the CPU encoder is offered.
func DetectGPUs() (GPUList, error) {
	return nil, nil
}
