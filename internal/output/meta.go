package output

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Meta is the timing sidecar written next to each recording.
type Meta struct {
	// VideoTicks are the presentation times of the encoded samples.
	VideoTicks []float64 `json:"video_ticks"`
	// FrameTimes are the capture arrival times over the same session.
	FrameTimes []float64 `json:"frame_times"`
	Backend    string    `json:"backend,omitempty"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	FrameRate  int       `json:"frameRate,omitempty"`
	Bitrate    int       `json:"bitrateInBps,omitempty"`
}

// MetaPath returns video.mp4 -> video_meta.json.
func MetaPath(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + "_meta.json"
}

func WriteMeta(videoPath string, m *Meta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}
	path := MetaPath(videoPath)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write meta: %w", err)
	}
	return nil
}

func ReadMeta(videoPath string) (*Meta, error) {
	data, err := os.ReadFile(MetaPath(videoPath))
	if err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse meta: %w", err)
	}
	return &m, nil
}

// StepStats summarizes the spacing between consecutive timestamps.
type StepStats struct {
	Count int
	Min   float64
	Max   float64
	Avg   float64
}

func Steps(times []float64) StepStats {
	if len(times) < 2 {
		return StepStats{Count: len(times)}
	}
	s := StepStats{Count: len(times), Min: math.Inf(1), Max: math.Inf(-1)}
	for i := 1; i < len(times); i++ {
		d := times[i] - times[i-1]
		s.Min = min(s.Min, d)
		s.Max = max(s.Max, d)
	}
	s.Avg = (times[len(times)-1] - times[0]) / float64(len(times)-1)
	return s
}

// LogSteps logs the sample spacing of a finished recording.
func LogSteps(name string, times []float64) {
	s := Steps(times)
	if s.Count < 2 {
		slog.Info(name+" timing", "samples", s.Count)
		return
	}
	slog.Info(name+" timing",
		"samples", s.Count,
		"minStepMs", s.Min*1000,
		"maxStepMs", s.Max*1000,
		"avgStepMs", s.Avg*1000,
	)
}
