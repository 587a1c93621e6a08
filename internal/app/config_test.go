package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"screenrec/internal/encoder"
	"screenrec/internal/errs"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Setenv("LOCALAPPDATA", t.TempDir())

	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
	if cfg.Backend != BackendLibrary || cfg.Source != SourceAuto {
		t.Errorf("defaults backend=%q source=%q", cfg.Backend, cfg.Source)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("LOCALAPPDATA", t.TempDir())

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"zero fps", func(c *Config) { c.FPS = 0 }, errs.ErrConfiguration},
		{"fps too high", func(c *Config) { c.FPS = 241 }, errs.ErrConfiguration},
		{"capture rate", func(c *Config) { c.CaptureRate = 0 }, errs.ErrConfiguration},
		{"negative seconds", func(c *Config) { c.Seconds = -1 }, errs.ErrConfiguration},
		{"negative segment", func(c *Config) { c.SecondsPerVideo = -5 }, errs.ErrConfiguration},
		{"negative bitrate", func(c *Config) { c.BitrateInBps = -1 }, errs.ErrConfiguration},
		{"unknown quality", func(c *Config) { c.Quality = "potato" }, errs.ErrInvalidProfile},
		{"unknown backend", func(c *Config) { c.Backend = "gstreamer" }, errs.ErrConfiguration},
		{"unknown source", func(c *Config) { c.Source = "vnc" }, errs.ErrConfiguration},
		{"quality alias", func(c *Config) { c.Quality = "4k" }, nil},
		{"transcoder", func(c *Config) { c.Backend = BackendTranscoder }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfigProperties(t *testing.T) {
	cfg := Config{FPS: 60, Quality: "720p", BitrateInBps: 5_000_000, Seconds: 90, MemoryCache: true}

	p := cfg.Properties()
	want := encoder.Properties{
		BitrateInBps: 5_000_000,
		FrameRate:    60,
		Quality:      encoder.QualityHD720p,
		Seconds:      90,
		MemoryCache:  true,
	}
	if p != want {
		t.Errorf("Properties() = %+v, want %+v", p, want)
	}

	cfg.SecondsPerVideo = 30
	if got := cfg.Properties().Seconds; got != 30 {
		t.Errorf("segmented Seconds = %d, want 30", got)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("LOCALAPPDATA", t.TempDir())
	dir := t.TempDir()
	defaults := DefaultConfig()

	if got := LoadConfig(filepath.Join(dir, "missing.json")); got != defaults {
		t.Errorf("LoadConfig(missing) = %+v", got)
	}

	garbage := filepath.Join(dir, "garbage.json")
	os.WriteFile(garbage, []byte("{not json"), 0644)
	if got := LoadConfig(garbage); got != defaults {
		t.Errorf("LoadConfig(garbage) = %+v", got)
	}

	invalid := filepath.Join(dir, "invalid.json")
	os.WriteFile(invalid, []byte(`{"fps": 1000}`), 0644)
	if got := LoadConfig(invalid); got != defaults {
		t.Errorf("LoadConfig(invalid) = %+v", got)
	}

	partial := filepath.Join(dir, "partial.json")
	os.WriteFile(partial, []byte(`{"fps": 60, "backend": "transcoder"}`), 0644)
	got := LoadConfig(partial)
	if got.FPS != 60 || got.Backend != BackendTranscoder || got.CaptureRate != defaults.CaptureRate {
		t.Errorf("LoadConfig(partial) = %+v", got)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Setenv("LOCALAPPDATA", t.TempDir())
	path := filepath.Join(t.TempDir(), configFileName)

	cfg := DefaultConfig()
	cfg.FPS = 24
	cfg.Quality = "pal"
	cfg.SecondsPerVideo = 600
	cfg.MemoryCache = true
	cfg.EncoderName = "h264_nvenc"

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}
	if got := LoadConfig(path); got != cfg {
		t.Errorf("LoadConfig() = %+v, want %+v", got, cfg)
	}
}

func TestConfigPath(t *testing.T) {
	root := t.TempDir()
	t.Setenv("LOCALAPPDATA", root)

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() error = %v", err)
	}
	want := filepath.Join(root, "ScreenRec", "config", configFileName)
	if path != want {
		t.Errorf("ConfigPath() = %q, want %q", path, want)
	}
}
