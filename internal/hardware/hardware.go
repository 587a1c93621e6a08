package hardware

import (
	"log/slog"
)

// Detect finds GPUs and checks which of their encoders the configured
// ffmpeg build provides. GPU detection failures are not fatal; the CPU
// encoder is always listed.
func Detect() *SystemInfo {
	gpus, err := DetectGPUs()
	if err != nil {
		slog.Warn("GPU detection failed", "error", err)
	}

	ValidateEncoders(gpus)

	var allEncoders []Encoder
	for _, gpu := range gpus {
		for _, enc := range gpu.Encoders {
			enc.GPUIndex = gpu.Index
			allEncoders = append(allEncoders, enc)
		}
	}

	allEncoders = append(allEncoders, Encoder{
		Name:      CPUEncoder,
		Available: true,
		GPUIndex:  -1,
	})

	return &SystemInfo{
		GPUs:     gpus,
		Encoders: allEncoders,
	}
}

// BestEncoder returns the first available hardware encoder, or the CPU
// encoder.
func (s *SystemInfo) BestEncoder() string {
	for _, gpu := range s.GPUs {
		if enc := gpu.PreferredEncoder(); enc != nil {
			return enc.Name
		}
	}
	return CPUEncoder
}

// Print logs all detected hardware information
func (s *SystemInfo) Print() {
	for _, g := range s.GPUs {
		slog.Info("detected GPU",
			"index", g.Index,
			"name", g.Name,
			"vendor", g.Vendor,
		)
	}

	for _, e := range s.GetAvailableEncoders() {
		gpuName := "CPU"
		if e.GPUIndex >= 0 {
			if gpu := s.GPUs.FindByIndex(e.GPUIndex); gpu != nil {
				gpuName = gpu.Name
			}
		}
		slog.Info("available encoder",
			"name", e.Name,
			"hardware", e.Hardware(),
			"gpu", gpuName,
		)
	}
}
