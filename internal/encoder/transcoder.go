package encoder

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"screenrec/internal/buffer"
	"screenrec/internal/errs"
	"screenrec/internal/gfx"
	"screenrec/internal/hardware"
	"screenrec/internal/output"
)

// stderrTail is how much ffmpeg diagnostic output is kept for errors.
const stderrTail = 4096

// Transcoder pipes raw BGRA frames into an ffmpeg process which encodes
// and muxes them. ffmpeg reads constant rate input, so samples are placed
// on the frame grid by their pts and gaps are filled by repeating the
// previous frame.
type Transcoder struct {
	// FFmpegPath defaults to hardware.FFmpegPath.
	FFmpegPath string
	// Encoder is an ffmpeg encoder name; empty means the CPU encoder.
	Encoder string

	device gfx.Device
	launch func(name string, args ...string) *exec.Cmd

	mu      sync.Mutex
	job     Job
	reader  *PixelReader
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	cache   *buffer.File
	stderr  *buffer.Ring[byte]
	pace    pacer
	last    []byte
	frames  int64
	exited  bool
	lastErr string
}

func NewTranscoder(device gfx.Device) *Transcoder {
	return &Transcoder{
		device: device,
		launch: hardware.Command,
	}
}

func (t *Transcoder) Name() string { return "transcoder" }

func (t *Transcoder) Initialize(job Job) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		return t.fail(fmt.Errorf("%w: transcoder already initialized", errs.ErrBackend))
	}

	path := t.FFmpegPath
	if path == "" {
		path = hardware.FFmpegPath
	}

	t.job = job
	t.reader = NewPixelReader(t.device, job.Width, job.Height)
	t.last = make([]byte, t.reader.FrameSize())
	t.pace = pacer{fps: float64(job.FrameRate)}
	t.stderr = buffer.NewRing[byte](stderrTail)

	args := t.buildArgs()
	cmd := t.launch(path, args...)
	cmd.Stderr = ringWriter{t.stderr}
	if job.MemoryCache {
		t.cache = buffer.NewFile(0)
		cmd.Stdout = t.cache
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return t.fail(fmt.Errorf("%w: failed to create stdin pipe: %v", errs.ErrBackend, err))
	}

	slog.Info("starting ffmpeg", "command", path+" "+strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return t.fail(fmt.Errorf("%w: failed to start ffmpeg: %v", errs.ErrBackend, err))
	}

	t.cmd = cmd
	t.stdin = stdin
	return nil
}

func (t *Transcoder) buildArgs() []string {
	j := t.job
	bitrate := strconv.Itoa(j.BitrateInBps)

	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", "bgra",
		"-video_size", fmt.Sprintf("%dx%d", j.Width, j.Height),
		"-framerate", strconv.Itoa(j.FrameRate),
		"-i", "pipe:0",
	)
	args = append(args, hardware.EncoderArgs(t.Encoder)...)
	args = append(args,
		"-b:v", bitrate,
		"-maxrate", bitrate,
		"-bufsize", strconv.Itoa(2*j.BitrateInBps),
		"-g", strconv.Itoa(GOPSize),
		"-bf", strconv.Itoa(MaxBFrames),
		"-f", "mp4",
	)
	if j.MemoryCache {
		// Fragmented output never seeks back, so it can stream to a pipe.
		return append(args, "-movflags", "frag_keyframe+empty_moov", "pipe:1")
	}
	return append(args, "-movflags", "+faststart", j.Destination)
}

func (t *Transcoder) SubmitFrame(tex gfx.Texture, pts float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return t.fail(fmt.Errorf("%w: transcoder not running", errs.ErrBackend))
	}

	pix, err := t.reader.Read(tex)
	if err != nil {
		return t.fail(fmt.Errorf("%w: readback: %v", errs.ErrBackend, err))
	}

	repeats, emit := t.pace.advance(pts)
	for range repeats {
		if err := t.write(t.last); err != nil {
			return err
		}
	}
	if !emit {
		// Sample falls inside a frame slot already written; keep it as the
		// newest picture for the next gap.
		copy(t.last, pix)
		return nil
	}
	if err := t.write(pix); err != nil {
		return err
	}
	copy(t.last, pix)
	return nil
}

func (t *Transcoder) write(frame []byte) error {
	if _, err := t.stdin.Write(frame); err != nil {
		return t.fail(fmt.Errorf("%w: write frame: %v%s", errs.ErrBackend, err, t.stderrText()))
	}
	t.frames++
	return nil
}

// Finalize closes ffmpeg's input and waits for it to write the trailer.
func (t *Transcoder) Finalize() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil || t.exited {
		return t.fail(fmt.Errorf("%w: transcoder not running", errs.ErrBackend))
	}

	t.stdin.Close()
	err := t.cmd.Wait()
	t.exited = true
	if err != nil {
		return t.fail(fmt.Errorf("%w: ffmpeg exited: %v%s", errs.ErrBackend, err, t.stderrText()))
	}

	if t.cache != nil {
		if err := output.Flush(t.cache, t.job.Destination); err != nil {
			return t.fail(fmt.Errorf("%w: %v", errs.ErrBackend, err))
		}
	}

	slog.Info("transcoder finished", "frames", t.frames, "path", t.job.Destination)
	return nil
}

// Close kills ffmpeg if it is still running and drops the memory cache.
func (t *Transcoder) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil && !t.exited {
		t.stdin.Close()
		if t.cmd.Process != nil {
			t.cmd.Process.Kill()
		}
		t.cmd.Wait()
		t.exited = true
	}
	t.stdin = nil
	if t.cache != nil {
		t.cache.Reset()
		t.cache = nil
	}
	return nil
}

func (t *Transcoder) ErrorMessage() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Frames returns how many frames were written to ffmpeg, repeats included.
func (t *Transcoder) Frames() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

func (t *Transcoder) fail(err error) error {
	t.lastErr = err.Error()
	return err
}

func (t *Transcoder) stderrText() string {
	if t.stderr == nil {
		return ""
	}
	s := strings.TrimSpace(string(t.stderr.Snapshot()))
	if s == "" {
		return ""
	}
	return ": " + s
}

// pacer maps sample times onto a constant rate frame grid.
type pacer struct {
	fps     float64
	next    int64
	started bool
}

// advance returns how many copies of the previous frame fill the gap
// before the sample at pts, and whether the sample gets its own slot.
func (p *pacer) advance(pts float64) (int64, bool) {
	idx := int64(math.Round(pts * p.fps))
	if !p.started {
		p.started = true
		p.next = idx + 1
		return 0, true
	}
	if idx < p.next {
		return 0, false
	}
	repeats := idx - p.next
	p.next = idx + 1
	return repeats, true
}

type ringWriter struct {
	r *buffer.Ring[byte]
}

func (w ringWriter) Write(p []byte) (int, error) {
	w.r.Push(p...)
	return len(p), nil
}

var _ Backend = (*Transcoder)(nil)
