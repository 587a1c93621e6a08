package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"screenrec/internal/app"
	"screenrec/internal/display"
	"screenrec/internal/encoder"
	"screenrec/internal/encoder/libav"
	"screenrec/internal/errs"
	"screenrec/internal/gfx"
	"screenrec/internal/hardware"
	"screenrec/internal/input"
	"screenrec/internal/logging"
	"screenrec/internal/output"
	"screenrec/internal/system"
	"screenrec/internal/utils"
)

const warmUp = 2 * time.Second

type flags struct {
	x, y, width, height int
	display             int

	fps             int
	quality         string
	bitrate         int
	seconds         int
	secondsPerVideo int
	memory          bool
	backend         string
	source          string
	cursor          bool
	output          string
	ffmpeg          string
	encoderName     string

	list  bool
	save  bool
	debug bool
	pprof string
}

func parseFlags() (*flags, map[string]bool) {
	f := &flags{}
	flag.IntVar(&f.x, "x", 0, "left edge of the capture region in screen coordinates")
	flag.IntVar(&f.y, "y", 0, "top edge of the capture region in screen coordinates")
	flag.IntVar(&f.width, "width", 0, "capture region width (0 captures the primary display)")
	flag.IntVar(&f.height, "height", 0, "capture region height (0 captures the primary display)")
	flag.IntVar(&f.display, "display", -1, "capture this display index when no width and height are given (default: primary)")
	flag.IntVar(&f.fps, "fps", 0, "encode frame rate")
	flag.StringVar(&f.quality, "quality", "", "quality tier: auto, 1080p, 720p, wvga, ntsc, pal, vga, qvga, 2160p, 4320p")
	flag.IntVar(&f.bitrate, "bitrate", 0, "bitrate in bits per second (0 derives it from quality)")
	flag.IntVar(&f.seconds, "seconds", 0, "stop after this many seconds (0 records until stopped)")
	flag.IntVar(&f.secondsPerVideo, "seconds-per-video", 0, "split the recording into files of this many seconds")
	flag.BoolVar(&f.memory, "memory", false, "buffer the video in memory and write it when encoding completes")
	flag.StringVar(&f.backend, "backend", "", "encoder backend: ffmpeg or transcoder")
	flag.StringVar(&f.source, "source", "", "capture source: auto, screenshot or dxgi")
	flag.BoolVar(&f.cursor, "cursor", false, "capture the mouse cursor")
	flag.StringVar(&f.output, "output", "", "output file; relative paths are placed in the videos directory (default: a timestamped file there)")
	flag.StringVar(&f.ffmpeg, "ffmpeg", "", "path to the ffmpeg executable used by the transcoder backend")
	flag.StringVar(&f.encoderName, "encoder", "", "ffmpeg encoder for the transcoder backend (default: best available)")
	flag.BoolVar(&f.list, "list", false, "print host, display and encoder information and exit")
	flag.BoolVar(&f.save, "save", false, "store the effective settings as the new defaults")
	flag.BoolVar(&f.debug, "debug", false, "enable debug logging")
	flag.StringVar(&f.pprof, "pprof", "", "serve pprof on this address, e.g. localhost:6060")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set
}

// applyFlags overrides the loaded settings with every flag given on the
// command line.
func applyFlags(cfg *app.Config, f *flags, set map[string]bool) {
	if set["fps"] {
		cfg.FPS = f.fps
	}
	if set["quality"] {
		cfg.Quality = f.quality
	}
	if set["bitrate"] {
		cfg.BitrateInBps = f.bitrate
	}
	if set["seconds"] {
		cfg.Seconds = f.seconds
	}
	if set["seconds-per-video"] {
		cfg.SecondsPerVideo = f.secondsPerVideo
	}
	if set["memory"] {
		cfg.MemoryCache = f.memory
	}
	if set["backend"] {
		cfg.Backend = f.backend
	}
	if set["source"] {
		cfg.Source = f.source
	}
	if set["cursor"] {
		cfg.Cursor = f.cursor
	}
	if set["ffmpeg"] {
		cfg.FFmpegPath = f.ffmpeg
	}
	if set["encoder"] {
		cfg.EncoderName = f.encoderName
	}
}

func getFFmpegPath(configured string) string {
	if configured != "" {
		return configured
	}

	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name = "ffmpeg.exe"
	}

	exeDir := utils.ExecutableDir()
	for _, p := range []string{
		filepath.Join(exeDir, name),
		filepath.Join(exeDir, "bin", name),
		filepath.Join("bin", name),
		name,
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	// Last resort: hope it's in PATH
	return hardware.FFmpegPath
}

func main() {
	os.Exit(run())
}

func run() int {
	f, set := parseFlags()

	logPath := logging.GetDefaultLogPath()
	if err := logging.Setup(logPath, f.debug); err != nil {
		log.Printf("Failed to setup logging: %v", err)
	}
	defer logging.Close()

	if f.list {
		info, err := system.Detect()
		if err != nil {
			slog.Error("system detection failed", "error", err)
			return 1
		}
		info.Print()
		return 0
	}

	lock, err := utils.AcquireSingleInstance(utils.InstanceName)
	if err != nil {
		slog.Error("cannot start", "error", err)
		return 1
	}
	defer lock.Release()

	if f.pprof != "" {
		go func() {
			slog.Info("starting pprof server", "addr", f.pprof)
			if err := http.ListenAndServe(f.pprof, nil); err != nil {
				slog.Warn("pprof failed", "error", err)
			}
		}()
	}

	cfgPath, err := app.ConfigPath()
	if err != nil {
		slog.Warn("no config directory", "error", err)
	}
	cfg := app.DefaultConfig()
	if cfgPath != "" {
		cfg = app.LoadConfig(cfgPath)
	}
	applyFlags(&cfg, f, set)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid settings", "error", err)
		return 2
	}
	if f.save && cfgPath != "" {
		if err := app.SaveConfig(cfgPath, cfg); err != nil {
			slog.Warn("failed to save config", "error", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		return 1
	}
	defer a.Close()

	hotkeys := input.NewHotkeyManager()
	if err := hotkeys.Register(input.StopCombo, func() {
		slog.Info("stop hotkey pressed")
		cancel()
		a.StopEncoding()
	}); err != nil {
		slog.Warn("hotkey unavailable", "error", err)
	} else {
		hotkeys.Start()
		defer hotkeys.Stop()
	}

	if err := record(ctx, a, cfg, f); err != nil {
		slog.Error("recording failed", "error", err)
		return 1
	}
	return 0
}

func newApp(cfg app.Config) (*app.App, error) {
	platform, err := app.SelectPlatform(cfg.Source, cfg.CaptureRate)
	if err != nil {
		return nil, err
	}

	hardware.FFmpegPath = getFFmpegPath(cfg.FFmpegPath)
	encoderName := cfg.EncoderName
	if cfg.Backend == app.BackendTranscoder {
		info := hardware.Detect()
		info.Print()
		encoderName = chooseEncoder(info, cfg.EncoderName)
	}

	backends := map[string]encoder.Factory{
		app.BackendLibrary: libav.Factory,
		app.BackendTranscoder: func(device gfx.Device) encoder.Backend {
			t := encoder.NewTranscoder(device)
			t.FFmpegPath = hardware.FFmpegPath
			t.Encoder = encoderName
			return t
		},
	}

	slog.Info("recorder configured",
		"platform", platform.Name(),
		"backend", cfg.Backend,
		"fps", cfg.FPS,
		"quality", cfg.Quality,
		"memoryCache", cfg.MemoryCache,
	)

	return app.New(app.Options{
		Device:   gfx.NewMemoryDevice(256),
		Platform: platform,
		Backends: backends,
		Backend:  cfg.Backend,
	})
}

// chooseEncoder returns requested when the machine can run it and the best
// available encoder otherwise.
func chooseEncoder(info *hardware.SystemInfo, requested string) string {
	if requested == "" {
		return info.BestEncoder()
	}
	enc := info.GetEncoder(requested)
	if enc == nil || !enc.Available {
		best := info.BestEncoder()
		slog.Warn("requested encoder is not available", "requested", requested, "using", best)
		return best
	}
	return enc.Name
}

// captureRegion returns the rectangle given by the flags, or the whole of
// the selected display when no size was given.
func captureRegion(f *flags, info *system.Info) (x, y, w, h int, err error) {
	if f.width > 0 && f.height > 0 {
		return f.x, f.y, f.width, f.height, nil
	}

	var d *display.Display
	if f.display >= 0 {
		d = info.Displays.FindByIndex(f.display)
		if d == nil {
			return 0, 0, 0, 0, fmt.Errorf("%w: no display with index %d", errs.ErrMonitorNotFound, f.display)
		}
	} else {
		d = info.SelectBestDisplay()
		if d == nil {
			return 0, 0, 0, 0, fmt.Errorf("%w: no display to capture", errs.ErrMonitorNotFound)
		}
	}
	return d.X, d.Y, d.Width, d.Height, nil
}

// outputBase returns the file the first segment is written to.
func outputBase(output, outputDir string, now time.Time) (string, error) {
	if output == "" {
		return filepath.Join(outputDir, fmt.Sprintf("recording_%s.mp4", now.Format("20060102_150405"))), nil
	}
	return utils.ResolveAbsPath(output, outputDir)
}

// record captures the requested region and encodes it until the context
// ends, the duration passes or, for segmented recordings, indefinitely.
func record(ctx context.Context, a *app.App, cfg app.Config, f *flags) error {
	x, y, w, h := f.x, f.y, f.width, f.height
	if w == 0 || h == 0 {
		info, err := system.Detect()
		if err != nil {
			return err
		}
		if x, y, w, h, err = captureRegion(f, info); err != nil {
			return err
		}
	}

	handle, err := a.StartCapture(x, y, w, h, cfg.Cursor)
	if err != nil {
		return err
	}
	defer a.StopCapture(handle)

	if err := warmUpCapture(a, handle); err != nil {
		return err
	}

	base, err := outputBase(f.output, cfg.OutputDir, time.Now())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for i := 0; ; i++ {
		path := output.SegmentPath(base, i)
		code, err := a.EncodeVideo(ctx, handle, path, cfg.Properties())
		if err != nil {
			return fmt.Errorf("encode %s (code %d: %s): %w", path, code, a.GetErrorMessage(code), err)
		}
		writeMeta(a, handle, cfg, path)

		if cfg.SecondsPerVideo == 0 || ctx.Err() != nil {
			return nil
		}
		if changed, _ := a.ResolutionChanged(handle); changed {
			slog.Warn("capture resolution changed, next segment uses the new size")
		}
	}
}

// warmUpCapture waits for the first frame and keeps reading for warmUp so
// the source has settled before encoding starts.
func warmUpCapture(a *app.App, handle int) error {
	ok, err := a.WaitForNextFrame(handle, int(app.ReadTimeout/time.Millisecond))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", errs.ErrResourceTimeout, errs.Message(errs.CodeNoFrames))
	}

	bounds, err := a.GetCaptureBounds(handle)
	if err != nil {
		return err
	}
	buf := make([]byte, bounds.Width()*bounds.Height()*4)

	frames := 0
	deadline := time.Now().Add(warmUp)
	for time.Now().Before(deadline) {
		if _, err := a.ReadNextFrame(handle, buf); err != nil {
			return err
		}
		frames++
	}
	slog.Info("capture warmed up", "frames", frames, "bounds", bounds.String())
	return nil
}

func writeMeta(a *app.App, handle int, cfg app.Config, path string) {
	ticks := make([]float64, a.GetSampleTimes(nil))
	ticks = ticks[:a.GetSampleTimes(ticks)]

	var frames []float64
	if n, err := a.GetCaptureTimes(handle, nil); err == nil {
		frames = make([]float64, n)
		n, _ = a.GetCaptureTimes(handle, frames)
		frames = frames[:n]
	}

	job := a.LastJob()
	m := &output.Meta{
		VideoTicks: ticks,
		FrameTimes: frames,
		Backend:    cfg.Backend,
		Width:      job.Width,
		Height:     job.Height,
		FrameRate:  job.FrameRate,
		Bitrate:    job.BitrateInBps,
	}
	if err := output.WriteMeta(path, m); err != nil {
		slog.Warn("failed to write meta", "error", err)
		return
	}

	output.LogSteps("video ticks", ticks)
	output.LogSteps("frame times", frames)
}
