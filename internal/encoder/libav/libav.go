// Package libav encodes with the FFmpeg libraries linked in-process: a
// libx264 (or any H.264) encoder and the MP4 muxer, fed through swscale.
package libav

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/asticode/go-astiav"

	"screenrec/internal/buffer"
	"screenrec/internal/encoder"
	"screenrec/internal/errs"
	"screenrec/internal/gfx"
	"screenrec/internal/output"
)

// ioBufferSize is the AVIO buffer for memory cached output.
const ioBufferSize = 64 * 1024

// Backend is the library muxer. Zero value is not usable; use New.
type Backend struct {
	device gfx.Device

	mu sync.Mutex

	job    encoder.Job
	reader *encoder.PixelReader

	formatCtx *astiav.FormatContext
	codecCtx  *astiav.CodecContext
	stream    *astiav.Stream
	ioCtx     *astiav.IOContext
	ownsIO    bool
	cache     *buffer.File

	scaler   *astiav.SoftwareScaleContext
	srcFrame *astiav.Frame
	dstFrame *astiav.Frame
	packet   *astiav.Packet

	codecName     string
	headerWritten bool
	lastPts       int64
	frames        int64
	packets       int64
	lastErr       string
}

func New(device gfx.Device) *Backend {
	return &Backend{device: device, lastPts: -1}
}

// Factory adapts New to encoder.Factory.
func Factory(device gfx.Device) encoder.Backend {
	return New(device)
}

func (b *Backend) Name() string { return "ffmpeg" }

func (b *Backend) Initialize(job encoder.Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.codecCtx != nil {
		return b.fail(errors.New("backend already initialized"))
	}
	b.job = job
	b.reader = encoder.NewPixelReader(b.device, job.Width, job.Height)

	if err := b.openEncoder(); err != nil {
		return b.fail(err)
	}
	if err := b.openMuxer(); err != nil {
		return b.fail(err)
	}
	if err := b.openScaler(); err != nil {
		return b.fail(err)
	}

	slog.Info("libav encoder ready",
		"codec", b.codecName,
		"resolution", fmt.Sprintf("%dx%d", job.Width, job.Height),
		"fps", job.FrameRate,
		"bitrate", job.BitrateInBps,
		"memoryCache", job.MemoryCache,
	)
	return nil
}

func (b *Backend) openEncoder() error {
	codec := astiav.FindEncoderByName("libx264")
	if codec == nil {
		codec = astiav.FindEncoder(astiav.CodecIDH264)
	}
	if codec == nil {
		return errors.New("Codec not found")
	}

	ctx := astiav.AllocCodecContext(codec)
	if ctx == nil {
		return errors.New("could not allocate codec context")
	}
	b.codecCtx = ctx
	b.codecName = codec.Name()

	fps := b.job.FrameRate
	ctx.SetWidth(b.job.Width)
	ctx.SetHeight(b.job.Height)
	ctx.SetPixelFormat(astiav.PixelFormatYuv420P)
	ctx.SetTimeBase(astiav.NewRational(1, fps*1000))
	ctx.SetFramerate(astiav.NewRational(fps, 1))
	ctx.SetBitRate(int64(b.job.BitrateInBps))
	ctx.SetGopSize(encoder.GOPSize)
	ctx.SetMaxBFrames(encoder.MaxBFrames)

	// The muxer is allocated before the encoder is opened so the
	// container can ask for global headers.
	fc, err := astiav.AllocOutputFormatContext(nil, "mp4", b.job.Destination)
	if err != nil {
		return fmt.Errorf("could not allocate output context: %w", err)
	}
	if fc == nil {
		return errors.New("could not allocate output context")
	}
	b.formatCtx = fc
	if fc.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader) {
		ctx.SetFlags(ctx.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}

	opts := astiav.NewDictionary()
	defer opts.Free()
	opts.Set("preset", "fast", 0)
	opts.Set("crf", "20", 0)
	opts.Set("qmin", "3", 0)

	if err := ctx.Open(codec, opts); err != nil {
		return fmt.Errorf("could not open codec: %w", err)
	}
	return nil
}

func (b *Backend) openMuxer() error {
	stream := b.formatCtx.NewStream(nil)
	if stream == nil {
		return errors.New("could not create video stream")
	}
	if err := stream.CodecParameters().FromCodecContext(b.codecCtx); err != nil {
		return fmt.Errorf("could not set stream parameters: %w", err)
	}
	stream.SetTimeBase(b.codecCtx.TimeBase())
	b.stream = stream

	if b.job.MemoryCache {
		b.cache = buffer.NewFile(ioBufferSize)
		ioCtx, err := astiav.AllocIOContext(ioBufferSize, true, nil,
			func(offset int64, whence int) (int64, error) {
				return b.cache.Seek(offset, whence)
			},
			func(p []byte) (int, error) {
				return b.cache.Write(p)
			},
		)
		if err != nil {
			return fmt.Errorf("could not allocate memory io context: %w", err)
		}
		b.ioCtx = ioCtx
	} else {
		ioCtx, err := astiav.OpenIOContext(b.job.Destination, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil)
		if err != nil {
			return fmt.Errorf("could not open %s: %w", b.job.Destination, err)
		}
		b.ioCtx = ioCtx
		b.ownsIO = true
	}
	b.formatCtx.SetPb(b.ioCtx)

	if err := b.formatCtx.WriteHeader(nil); err != nil {
		return fmt.Errorf("could not write header: %w", err)
	}
	b.headerWritten = true
	return nil
}

func (b *Backend) openScaler() error {
	w, h := b.job.Width, b.job.Height

	b.srcFrame = astiav.AllocFrame()
	b.srcFrame.SetWidth(w)
	b.srcFrame.SetHeight(h)
	b.srcFrame.SetPixelFormat(astiav.PixelFormatBgra)
	if err := b.srcFrame.AllocBuffer(1); err != nil {
		return fmt.Errorf("could not allocate source frame: %w", err)
	}

	b.dstFrame = astiav.AllocFrame()
	b.dstFrame.SetWidth(w)
	b.dstFrame.SetHeight(h)
	b.dstFrame.SetPixelFormat(astiav.PixelFormatYuv420P)
	if err := b.dstFrame.AllocBuffer(1); err != nil {
		return fmt.Errorf("could not allocate encoder frame: %w", err)
	}

	ssc, err := astiav.CreateSoftwareScaleContext(
		w, h, astiav.PixelFormatBgra,
		w, h, astiav.PixelFormatYuv420P,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear),
	)
	if err != nil {
		return fmt.Errorf("could not create scaler: %w", err)
	}
	b.scaler = ssc
	b.packet = astiav.AllocPacket()
	return nil
}

// SubmitFrame converts tex to YUV and encodes it at pts seconds. The codec
// time base is 1/(fps*1000), so pts maps to pts*1000*fps ticks.
func (b *Backend) SubmitFrame(tex gfx.Texture, pts float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.scaler == nil {
		return b.fail(errors.New("backend not initialized"))
	}

	pix, err := b.reader.Read(tex)
	if err != nil {
		return b.fail(fmt.Errorf("readback: %w", err))
	}
	if err := b.srcFrame.MakeWritable(); err != nil {
		return b.fail(fmt.Errorf("source frame not writable: %w", err))
	}
	if err := b.srcFrame.Data().SetBytes(pix, 1); err != nil {
		return b.fail(fmt.Errorf("could not fill source frame: %w", err))
	}
	if err := b.dstFrame.MakeWritable(); err != nil {
		return b.fail(fmt.Errorf("encoder frame not writable: %w", err))
	}
	if err := b.scaler.ScaleFrame(b.srcFrame, b.dstFrame); err != nil {
		return b.fail(fmt.Errorf("could not convert frame: %w", err))
	}

	ticks := int64(pts * 1000 * float64(b.job.FrameRate))
	if ticks <= b.lastPts {
		// Two samples in one tick; the encoder requires increasing pts.
		ticks = b.lastPts + 1
	}
	b.lastPts = ticks
	b.dstFrame.SetPts(ticks)

	if err := b.codecCtx.SendFrame(b.dstFrame); err != nil {
		return b.fail(fmt.Errorf("could not send frame: %w", err))
	}
	b.frames++
	return b.drain()
}

// drain writes every packet the encoder has ready.
func (b *Backend) drain() error {
	tb := b.codecCtx.TimeBase()
	duration := int64(tb.Den()) / int64(tb.Num()) / int64(b.job.FrameRate)
	for {
		err := b.codecCtx.ReceivePacket(b.packet)
		if errors.Is(err, astiav.ErrEof) || errors.Is(err, astiav.ErrEagain) {
			return nil
		}
		if err != nil {
			return b.fail(fmt.Errorf("could not encode frame: %w", err))
		}

		b.packet.SetDuration(duration)
		b.packet.RescaleTs(tb, b.stream.TimeBase())
		b.packet.SetStreamIndex(b.stream.Index())
		err = b.formatCtx.WriteInterleavedFrame(b.packet)
		b.packet.Unref()
		if err != nil {
			return b.fail(fmt.Errorf("could not write packet: %w", err))
		}
		b.packets++
	}
}

// Finalize flushes the encoder, writes the trailer and, for memory cached
// jobs, writes the finished file to disk.
func (b *Backend) Finalize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.headerWritten {
		return b.fail(errors.New("backend not initialized"))
	}

	if err := b.codecCtx.SendFrame(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
		return b.fail(fmt.Errorf("could not flush encoder: %w", err))
	}
	if err := b.drain(); err != nil {
		return err
	}
	if err := b.formatCtx.WriteTrailer(); err != nil {
		return b.fail(fmt.Errorf("could not write trailer: %w", err))
	}
	b.headerWritten = false

	if b.cache != nil {
		if err := output.Flush(b.cache, b.job.Destination); err != nil {
			return b.fail(err)
		}
	}

	slog.Info("libav encoder finished", "frames", b.frames, "packets", b.packets, "path", b.job.Destination)
	return nil
}

// Close frees every library object regardless of how far Initialize got.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.packet != nil {
		b.packet.Free()
		b.packet = nil
	}
	if b.scaler != nil {
		b.scaler.Free()
		b.scaler = nil
	}
	if b.dstFrame != nil {
		b.dstFrame.Free()
		b.dstFrame = nil
	}
	if b.srcFrame != nil {
		b.srcFrame.Free()
		b.srcFrame = nil
	}
	if b.codecCtx != nil {
		b.codecCtx.Free()
		b.codecCtx = nil
	}
	if b.ioCtx != nil {
		if b.ownsIO {
			b.ioCtx.Close()
		}
		b.ioCtx.Free()
		b.ioCtx = nil
	}
	if b.formatCtx != nil {
		b.formatCtx.Free()
		b.formatCtx = nil
	}
	if b.cache != nil {
		b.cache.Reset()
		b.cache = nil
	}
	b.stream = nil
	return nil
}

func (b *Backend) ErrorMessage() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *Backend) fail(err error) error {
	b.lastErr = err.Error()
	return fmt.Errorf("%w: %v", errs.ErrBackend, err)
}

var _ encoder.Backend = (*Backend)(nil)
