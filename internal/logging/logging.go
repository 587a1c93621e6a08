package logging

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"screenrec/internal/utils"
)

const logFileName = "screenrec.log"

var (
	mu      sync.Mutex
	logFile *lumberjack.Logger
)

// Setup installs the default slog logger writing to a rotating file at
// logPath and to stdout when there is one.
func Setup(logPath string, debug bool) error {
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   false,
	}

	writers := []io.Writer{file}
	// GUI subsystem builds have no stdout.
	if fileInfo, _ := os.Stdout.Stat(); fileInfo != nil {
		writers = append(writers, os.Stdout)
	}
	w := io.MultiWriter(writers...)

	slog.SetDefault(slog.New(NewHandler(w, debug)))
	log.SetOutput(w)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	mu.Lock()
	prev := logFile
	logFile = file
	mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	slog.Info("logging initialized", "path", logPath, "debug", debug)
	return nil
}

// NewHandler returns the text handler Setup installs, writing to w.
func NewHandler(w io.Writer, debug bool) slog.Handler {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}

// Close closes the log file. Later records still reach stdout.
func Close() error {
	mu.Lock()
	file := logFile
	logFile = nil
	mu.Unlock()

	if file == nil {
		return nil
	}
	slog.Info("logging shutdown")
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// GetDefaultLogPath returns logs/screenrec.log next to the executable, or
// in the per-user logs directory when the executable's directory is
// read-only.
func GetDefaultLogPath() string {
	return logPathIn(utils.ExecutableDir())
}

func logPathIn(exeDir string) string {
	dir := filepath.Join(exeDir, "logs")
	if writable(dir) {
		return filepath.Join(dir, logFileName)
	}
	fallback, err := utils.GetLogsDir()
	if err != nil {
		return filepath.Join(dir, logFileName)
	}
	return filepath.Join(fallback, logFileName)
}

func writable(dir string) bool {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false
	}
	f, err := os.CreateTemp(dir, ".write-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}
