package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"screenrec/internal/encoder"
	"screenrec/internal/errs"
	"screenrec/internal/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const configFileName = "settings.json"

const (
	BackendLibrary    = "ffmpeg"
	BackendTranscoder = "transcoder"

	SourceAuto       = "auto"
	SourceScreenshot = "screenshot"
	SourceDXGI       = "dxgi"
)

// Config represents user-configurable settings
type Config struct {
	FPS          int    `json:"fps"`
	Quality      string `json:"quality"`
	BitrateInBps int    `json:"bitrateInBps"` // 0 derives it from quality
	Seconds      int    `json:"seconds"`      // 0 records until stopped
	// SecondsPerVideo splits a recording into consecutive files.
	SecondsPerVideo int    `json:"secondsPerVideo"`
	MemoryCache     bool   `json:"memoryCache"`
	Backend         string `json:"backend"`
	Source          string `json:"source"`
	CaptureRate     int    `json:"captureRate"`
	Cursor          bool   `json:"cursor"`
	EncoderName     string `json:"encoderName"` // transcoder only, empty auto-selects
	FFmpegPath      string `json:"ffmpegPath"`
	OutputDir       string `json:"outputDir"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	outputDir, err := utils.GetVideosDir()
	if err != nil {
		outputDir = "./videos"
	}

	return Config{
		FPS:         30,
		Quality:     encoder.QualityAuto.String(),
		Backend:     BackendLibrary,
		Source:      SourceAuto,
		CaptureRate: 60,
		OutputDir:   outputDir,
	}
}

func (c Config) Validate() error {
	if c.FPS <= 0 || c.FPS > 240 {
		return fmt.Errorf("%w: fps must be between 1 and 240", errs.ErrConfiguration)
	}
	if c.CaptureRate <= 0 || c.CaptureRate > 240 {
		return fmt.Errorf("%w: capture rate must be between 1 and 240", errs.ErrConfiguration)
	}
	if c.Seconds < 0 || c.SecondsPerVideo < 0 {
		return fmt.Errorf("%w: durations must not be negative", errs.ErrConfiguration)
	}
	if c.BitrateInBps < 0 {
		return fmt.Errorf("%w: bitrate must not be negative", errs.ErrConfiguration)
	}
	if _, err := encoder.ParseQuality(c.Quality); err != nil {
		return err
	}
	switch c.Backend {
	case BackendLibrary, BackendTranscoder:
	default:
		return fmt.Errorf("%w: unknown backend %q", errs.ErrConfiguration, c.Backend)
	}
	switch c.Source {
	case SourceAuto, SourceScreenshot, SourceDXGI:
	default:
		return fmt.Errorf("%w: unknown capture source %q", errs.ErrConfiguration, c.Source)
	}
	return nil
}

// Properties returns the encode job settings for one video. Segmented
// recordings cap each file at SecondsPerVideo.
func (c Config) Properties() encoder.Properties {
	q, _ := encoder.ParseQuality(c.Quality)
	seconds := c.Seconds
	if c.SecondsPerVideo > 0 {
		seconds = c.SecondsPerVideo
	}
	return encoder.Properties{
		BitrateInBps: c.BitrateInBps,
		FrameRate:    c.FPS,
		Quality:      q,
		Seconds:      seconds,
		MemoryCache:  c.MemoryCache,
	}
}

// ConfigPath returns the settings file location.
func ConfigPath() (string, error) {
	configDir, err := utils.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFileName), nil
}

// LoadConfig reads settings from path. A missing, unreadable or invalid
// file yields the defaults.
func LoadConfig(path string) Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("no config file found, using defaults", "path", path)
		} else {
			slog.Warn("failed to read config file, using defaults", "error", err)
		}
		return cfg
	}

	loaded := DefaultConfig()
	if err := json.Unmarshal(data, &loaded); err != nil {
		slog.Warn("failed to parse config file, using defaults", "error", err)
		return cfg
	}
	if err := loaded.Validate(); err != nil {
		slog.Warn("invalid config file, using defaults", "error", err)
		return cfg
	}

	slog.Info("config loaded", "path", path)
	return loaded
}

func SaveConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	slog.Info("config saved", "path", path)
	return nil
}
