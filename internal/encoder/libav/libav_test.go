package libav

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/asticode/go-astiav"

	"screenrec/internal/encoder"
	"screenrec/internal/gfx"
)

func requireH264(t *testing.T) {
	t.Helper()
	if astiav.FindEncoderByName("libx264") == nil && astiav.FindEncoder(astiav.CodecIDH264) == nil {
		t.Skip("no H.264 encoder in the linked FFmpeg build")
	}
}

func gradient(t *testing.T, d *gfx.MemoryDevice, w, h int, shift byte) gfx.Texture {
	t.Helper()
	tex, err := d.CreateTexture(gfx.NewDesc(w, h, gfx.UsageDefault))
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := (y*w + x) * 4
			pix[o] = byte(x) + shift
			pix[o+1] = byte(y)
			pix[o+2] = shift
			pix[o+3] = 0xff
		}
	}
	if err := d.Upload(tex, pix, w*4); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	return tex
}

func encode(t *testing.T, memory bool) []byte {
	t.Helper()
	requireH264(t)

	device := gfx.NewMemoryDevice(256)
	dest := filepath.Join(t.TempDir(), "out.mp4")
	job, err := encoder.NewJob(encoder.Properties{FrameRate: 30, MemoryCache: memory}, 161, 121, dest)
	if err != nil {
		t.Fatalf("NewJob() error = %v", err)
	}

	b := New(device)
	defer b.Close()
	if err := b.Initialize(job); err != nil {
		t.Fatalf("Initialize() error = %v (%s)", err, b.ErrorMessage())
	}

	for i := 0; i < 20; i++ {
		tex := gradient(t, device, 161, 121, byte(i*8))
		err := b.SubmitFrame(tex, float64(i)/30)
		tex.Release()
		if err != nil {
			t.Fatalf("SubmitFrame(%d) error = %v", i, err)
		}
	}
	if err := b.Finalize(); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	return data
}

func TestEncodeToFile(t *testing.T) {
	data := encode(t, false)
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		t.Fatalf("output is not an MP4 file (%d bytes)", len(data))
	}
}

func TestEncodeMemoryCache(t *testing.T) {
	data := encode(t, true)
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		t.Fatalf("flushed output is not an MP4 file (%d bytes)", len(data))
	}
	if !bytes.Contains(data, []byte("moov")) {
		t.Fatal("missing moov box")
	}
}

func TestCloseWithoutInitialize(t *testing.T) {
	b := New(gfx.NewMemoryDevice(0))
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Finalize(); err == nil {
		t.Fatal("Finalize() before Initialize must fail")
	}
}
