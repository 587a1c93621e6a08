package hardware

import (
	"log/slog"
	"strings"
)

// profile describes how the transcoder drives one hardware encoder from
// raw BGRA on stdin. All of them take NV12.
type profile struct {
	name   string
	vendor Vendor
	args   []string
}

var profiles = []profile{
	{"h264_nvenc", VendorNVIDIA, []string{"-preset", "p1", "-rc", "cbr", "-delay", "0", "-zerolatency", "1"}},
	{"h264_amf", VendorAMD, []string{"-usage", "lowlatency", "-rc", "cbr", "-quality", "speed"}},
	{"h264_qsv", VendorIntel, []string{"-preset", "veryfast", "-look_ahead", "0"}},
}

func findProfile(name string) (profile, bool) {
	for _, p := range profiles {
		if p.name == name {
			return p, true
		}
	}
	return profile{}, false
}

func encodersForVendor(v Vendor) []Encoder {
	var out []Encoder
	for _, p := range profiles {
		if p.vendor == v {
			out = append(out, Encoder{Name: p.name, Vendor: v})
		}
	}
	return out
}

// DetectAvailableEncoders asks ffmpeg which of the known hardware encoders
// it was built with.
func DetectAvailableEncoders() []string {
	slog.Debug("detecting encoders", "ffmpegPath", FFmpegPath)

	out, err := Command(FFmpegPath, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		slog.Warn("ffmpeg encoder detection failed", "error", err)
		return nil
	}

	encoders := parseEncoders(string(out))
	slog.Info("detected encoders", "count", len(encoders), "encoders", encoders)
	return encoders
}

// parseEncoders scans `ffmpeg -encoders` output. The encoder name is the
// second column.
func parseEncoders(output string) []string {
	listed := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			listed[fields[1]] = true
		}
	}

	var encoders []string
	for _, p := range profiles {
		if listed[p.name] {
			encoders = append(encoders, p.name)
		}
	}
	return encoders
}

// ValidateEncoders marks each GPU encoder available when ffmpeg has it.
func ValidateEncoders(gpus GPUList) {
	if len(gpus) == 0 {
		return
	}
	available := make(map[string]bool)
	for _, enc := range DetectAvailableEncoders() {
		available[enc] = true
	}

	for _, gpu := range gpus {
		for i := range gpu.Encoders {
			gpu.Encoders[i].Available = available[gpu.Encoders[i].Name]
		}
	}
}

// EncoderArgs returns the filter and codec arguments for encoding piped
// BGRA frames with the named encoder. Unknown names get the CPU encoder.
func EncoderArgs(name string) []string {
	p, ok := findProfile(name)
	if !ok {
		return CPUEncoderArgs()
	}
	args := []string{"-vf", "format=nv12", "-c:v", p.name}
	return append(args, p.args...)
}

func CPUEncoderArgs() []string {
	return []string{
		"-vf", "format=yuv420p",
		"-c:v", CPUEncoder,
		"-preset", "fast",
		"-tune", "zerolatency",
	}
}
