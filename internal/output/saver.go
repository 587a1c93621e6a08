package output

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Source is media accumulated in memory, such as a buffer.File.
type Source interface {
	io.WriterTo
	Len() int
}

// Flush writes src to path in one pass. It is used once encoding into a
// memory cache has finished, so the file on disk is never partial.
func Flush(src Source, path string) error {
	if src.Len() == 0 {
		return fmt.Errorf("buffer is empty")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	w := bufio.NewWriterSize(f, 8*1024*1024)
	n, err := src.WriteTo(w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	slog.Info("video saved", "path", path, "bytes", n)
	return nil
}

// SegmentPath returns the file name for the index-th segment of a
// recording: name.mp4, name_1.mp4, name_2.mp4 and so on.
func SegmentPath(path string, index int) string {
	if index <= 0 {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + strconv.Itoa(index) + ext
}
