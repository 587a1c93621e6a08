//go:build !windows

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// SingleInstanceMutex is an exclusive lock file in the temp directory.
type SingleInstanceMutex struct {
	f *os.File
}

func AcquireSingleInstance(name string) (*SingleInstanceMutex, error) {
	clean := strings.NewReplacer("\\", "_", "/", "_").Replace(name)
	path := filepath.Join(os.TempDir(), clean+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, ErrAlreadyRunning
	}
	return &SingleInstanceMutex{f: f}, nil
}

func (m *SingleInstanceMutex) Release() {
	if m.f != nil {
		m.f.Close()
		m.f = nil
	}
}
