package coordinator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"screenrec/internal/encoder"
	"screenrec/internal/errs"
	"screenrec/internal/gfx"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func newTestCoordinator(b *fakeBackend) (*Coordinator, *countingFactory, *gfx.MemoryDevice) {
	device := gfx.NewMemoryDevice(0)
	f := &countingFactory{b: b}
	c := New(device, f.new)
	c.FirstFrameTimeout = 50 * time.Millisecond
	c.StallTimeout = 100 * time.Millisecond
	return c, f, device
}

func dest(t *testing.T) string {
	return filepath.Join(t.TempDir(), "out.mp4")
}

func TestEncodeStopsAndFinalizes(t *testing.T) {
	b := &fakeBackend{}
	c, _, device := newTestCoordinator(b)
	b.onSubmit = func(n int) {
		if n == 15 {
			c.Stop()
		}
	}
	src := newFakeSource(device, 64, 48, -1)

	code, err := c.Encode(context.Background(), src, encoder.Properties{FrameRate: 200}, dest(t))
	if err != nil || code != errs.CodeOK {
		t.Fatalf("Encode() = %d, %v", code, err)
	}
	if c.State() != StateStopped {
		t.Fatalf("state = %s, want stopped", c.State())
	}

	pts, inits, finalizes, closes := b.snapshot()
	if inits != 1 || finalizes != 1 || closes != 1 {
		t.Fatalf("inits/finalizes/closes = %d/%d/%d", inits, finalizes, closes)
	}
	if len(pts) != 15 {
		t.Fatalf("submitted %d frames, want 15", len(pts))
	}
	if pts[0] != 0 {
		t.Fatalf("first pts = %v, want 0", pts[0])
	}
	for i := 1; i < len(pts); i++ {
		if pts[i] < pts[i-1] {
			t.Fatalf("pts decreased at %d: %v", i, pts)
		}
	}

	if n := c.SampleTimes(nil); n != len(pts) {
		t.Fatalf("SampleTimes(nil) = %d, want %d", n, len(pts))
	}
	samples := make([]float64, 4)
	if n := c.SampleTimes(samples); n != 4 || samples[3] != pts[3] {
		t.Fatalf("SampleTimes() = %d, %v", n, samples)
	}

	if live := device.LiveTextures(); live != 0 {
		t.Fatalf("%d textures leaked", live)
	}
	if Busy() {
		t.Fatal("busy flag still set")
	}
}

func TestEncodeThrottlesToFrameRate(t *testing.T) {
	b := &fakeBackend{}
	c, _, device := newTestCoordinator(b)
	b.onSubmit = func(n int) {
		if n == 11 {
			c.Stop()
		}
	}
	src := newFakeSource(device, 16, 16, -1)

	start := time.Now()
	if _, err := c.Encode(context.Background(), src, encoder.Properties{FrameRate: 100}, dest(t)); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	// Ten paced steps at 100 fps, allowing for sleep rounding.
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("encode of 11 frames at 100 fps took %v", elapsed)
	}
}

func TestEncodeHonorsDuration(t *testing.T) {
	b := &fakeBackend{}
	c, _, device := newTestCoordinator(b)
	src := newFakeSource(device, 16, 16, -1)

	code, err := c.Encode(context.Background(), src, encoder.Properties{FrameRate: 50, Seconds: 1}, dest(t))
	if err != nil || code != errs.CodeOK {
		t.Fatalf("Encode() = %d, %v", code, err)
	}
	if c.State() != StateCompleted {
		t.Fatalf("state = %s", c.State())
	}
	pts, _, finalizes, _ := b.snapshot()
	if finalizes != 1 {
		t.Fatal("expected finalize")
	}
	if last := pts[len(pts)-1]; last < 0.9 || last > 1.2 {
		t.Fatalf("last pts = %v, want about 1s", last)
	}
}

func TestEncodeContextCancel(t *testing.T) {
	b := &fakeBackend{}
	c, _, device := newTestCoordinator(b)
	ctx, cancel := context.WithCancel(context.Background())
	b.onSubmit = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	if _, err := c.Encode(ctx, newFakeSource(device, 8, 8, -1), encoder.Properties{FrameRate: 200}, dest(t)); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if c.State() != StateStopped {
		t.Fatalf("state = %s", c.State())
	}
}

func TestSecondEncodeIsBusy(t *testing.T) {
	running := &fakeBackend{}
	c1, _, device := newTestCoordinator(running)

	done := make(chan error, 1)
	go func() {
		_, err := c1.Encode(context.Background(), newFakeSource(device, 8, 8, -1), encoder.Properties{FrameRate: 100}, dest(t))
		done <- err
	}()
	waitFor(t, time.Second, func() bool {
		pts, _, _, _ := running.snapshot()
		return len(pts) > 0
	})

	other := &fakeBackend{}
	c2, f2, device2 := newTestCoordinator(other)
	code, err := c2.Encode(context.Background(), newFakeSource(device2, 8, 8, -1), encoder.Properties{FrameRate: 30}, dest(t))
	if !errors.Is(err, errs.ErrEncoderBusy) || code != errs.CodeEncoderBusy {
		t.Fatalf("second Encode() = %d, %v; want busy", code, err)
	}
	if f2.calls.Load() != 0 || device2.CreatedTextures() != 0 {
		t.Fatal("busy rejection allocated resources")
	}
	if c2.State() != StateIdle {
		t.Fatalf("rejected coordinator state = %s", c2.State())
	}

	c1.Stop()
	if err := <-done; err != nil {
		t.Fatalf("first Encode() error = %v", err)
	}
}

func TestOddDimensionsAreTruncated(t *testing.T) {
	b := &fakeBackend{}
	c, _, device := newTestCoordinator(b)
	b.onSubmit = func(int) { c.Stop() }

	if _, err := c.Encode(context.Background(), newFakeSource(device, 801, 601, -1), encoder.Properties{FrameRate: 30}, dest(t)); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if b.job.Width != 800 || b.job.Height != 600 {
		t.Fatalf("backend job = %dx%d, want 800x600", b.job.Width, b.job.Height)
	}
	if c.LastJob().BitrateInBps != encoder.BestBitrate(encoder.QualityAuto, 30) {
		t.Fatalf("derived bitrate = %d", c.LastJob().BitrateInBps)
	}
}

func TestZeroAreaRejectedBeforeBackend(t *testing.T) {
	b := &fakeBackend{}
	c, f, _ := newTestCoordinator(b)
	tex := &descTexture{desc: gfx.NewDesc(0, 600, gfx.UsageDefault)}

	code, err := c.Encode(context.Background(), staticSource{tex}, encoder.Properties{FrameRate: 30}, dest(t))
	if !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("Encode() error = %v", err)
	}
	if code != errs.CodeUnknown {
		t.Fatalf("code = %d", code)
	}
	if f.calls.Load() != 0 {
		t.Fatal("backend created for zero area input")
	}
	if tex.released.Load() != 1 {
		t.Fatal("first frame not released")
	}
	if c.State() != StateFailed {
		t.Fatalf("state = %s", c.State())
	}
}

func TestFirstFrameTimeout(t *testing.T) {
	b := &fakeBackend{}
	c, f, device := newTestCoordinator(b)

	code, err := c.Encode(context.Background(), newFakeSource(device, 8, 8, 0), encoder.Properties{FrameRate: 30}, dest(t))
	if !errors.Is(err, errs.ErrResourceTimeout) || code != errs.CodeNoFrames {
		t.Fatalf("Encode() = %d, %v", code, err)
	}
	if f.calls.Load() != 0 {
		t.Fatal("backend created without frames")
	}
	if errs.Message(code) != "No frames are arriving" {
		t.Fatalf("message = %q", errs.Message(code))
	}
}

func TestStallHoldsThenFails(t *testing.T) {
	b := &fakeBackend{}
	c, _, device := newTestCoordinator(b)

	code, err := c.Encode(context.Background(), newFakeSource(device, 8, 8, 2), encoder.Properties{FrameRate: 100}, dest(t))
	if !errors.Is(err, errs.ErrResourceTimeout) || code != errs.CodeNoFrames {
		t.Fatalf("Encode() = %d, %v", code, err)
	}

	pts, _, finalizes, closes := b.snapshot()
	if len(pts) <= 2 {
		t.Fatalf("expected held frames after the stall, got %d samples", len(pts))
	}
	if finalizes != 0 || closes != 1 {
		t.Fatalf("finalizes/closes = %d/%d", finalizes, closes)
	}
	if live := device.LiveTextures(); live != 0 {
		t.Fatalf("%d textures leaked", live)
	}
}

func TestBackendErrorSkipsFinalize(t *testing.T) {
	b := &fakeBackend{failAt: 3}
	c, _, device := newTestCoordinator(b)

	code, err := c.Encode(context.Background(), newFakeSource(device, 8, 8, -1), encoder.Properties{FrameRate: 200}, dest(t))
	if !errors.Is(err, errs.ErrBackend) || code != errs.CodeCodec {
		t.Fatalf("Encode() = %d, %v", code, err)
	}
	_, _, finalizes, closes := b.snapshot()
	if finalizes != 0 || closes != 1 {
		t.Fatalf("finalizes/closes = %d/%d", finalizes, closes)
	}
	if !strings.Contains(c.ErrorMessage(), "write packet failed") {
		t.Fatalf("ErrorMessage() = %q", c.ErrorMessage())
	}
	if live := device.LiveTextures(); live != 0 {
		t.Fatalf("%d textures leaked", live)
	}
}

func TestBackendInitFailure(t *testing.T) {
	b := &fakeBackend{failInit: true}
	c, _, device := newTestCoordinator(b)

	code, err := c.Encode(context.Background(), newFakeSource(device, 8, 8, -1), encoder.Properties{FrameRate: 30}, dest(t))
	if code != errs.CodeCodec || !errors.Is(err, errs.ErrBackend) {
		t.Fatalf("Encode() = %d, %v", code, err)
	}
	_, inits, _, closes := b.snapshot()
	if inits != 1 || closes != 1 {
		t.Fatalf("inits/closes = %d/%d", inits, closes)
	}
}

func TestPanicIsConverted(t *testing.T) {
	b := &fakeBackend{panicAt: 2}
	c, _, device := newTestCoordinator(b)

	code, err := c.Encode(context.Background(), newFakeSource(device, 8, 8, -1), encoder.Properties{FrameRate: 200}, dest(t))
	if err == nil || code != errs.CodeUnknown {
		t.Fatalf("Encode() = %d, %v", code, err)
	}
	if !strings.Contains(errs.Message(errs.CodeUnknown), "encoder exploded") {
		t.Fatalf("message = %q", errs.Message(errs.CodeUnknown))
	}
	if _, _, _, closes := b.snapshot(); closes != 1 {
		t.Fatalf("closes = %d", closes)
	}
	if Busy() {
		t.Fatal("busy flag leaked after panic")
	}
	if c.State() != StateFailed {
		t.Fatalf("state = %s", c.State())
	}
}
