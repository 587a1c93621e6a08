package buffer

import (
	"errors"
	"io"
	"sync"
)

var ErrNegativeOffset = errors.New("negative offset")

// File is a growable in-memory file. Muxers that patch headers after the
// fact (MP4 writes its moov box last and rewrites mdat sizes) need Seek,
// which a plain bytes.Buffer lacks.
type File struct {
	mu  sync.Mutex
	buf []byte
	pos int64
}

func NewFile(capacity int) *File {
	return &File{buf: make([]byte, 0, capacity)}
}

// Write writes p at the current offset, growing the file as needed.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	end := f.pos + int64(len(p))
	if end > int64(len(f.buf)) {
		old := int64(len(f.buf))
		if end > int64(cap(f.buf)) {
			grown := make([]byte, len(f.buf), max(end, int64(cap(f.buf))*2))
			copy(grown, f.buf)
			f.buf = grown
		}
		f.buf = f.buf[:end]
		if f.pos > old {
			clear(f.buf[old:f.pos])
		}
	}
	copy(f.buf[f.pos:end], p)
	f.pos = end
	return len(p), nil
}

// Seek follows io.Seeker. Seeking past the end is allowed; the gap is
// zero filled on the next write.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.pos + offset
	case io.SeekEnd:
		abs = int64(len(f.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, ErrNegativeOffset
	}
	f.pos = abs
	return abs, nil
}

// Snapshot returns a copy of the file contents.
func (f *File) Snapshot() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.buf) == 0 {
		return nil
	}
	snap := make([]byte, len(f.buf))
	copy(snap, f.buf)
	return snap
}

// WriteTo writes the whole file to w without copying it first.
func (f *File) WriteTo(w io.Writer) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := w.Write(f.buf)
	return int64(n), err
}

func (f *File) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buf)
}

func (f *File) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buf = f.buf[:0]
	f.pos = 0
}
