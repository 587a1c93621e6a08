//go:build windows

package timer

import (
	"log/slog"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	kernel32                   = windows.NewLazySystemDLL("kernel32.dll")
	procCreateWaitableTimerExW = kernel32.NewProc("CreateWaitableTimerExW")
	procSetWaitableTimer       = kernel32.NewProc("SetWaitableTimer")
	ntdll                      = windows.NewLazySystemDLL("ntdll.dll")
	procNtQueryTimerResolution = ntdll.NewProc("NtQueryTimerResolution")
	procNtSetTimerResolution   = ntdll.NewProc("NtSetTimerResolution")
	winmm                      = windows.NewLazySystemDLL("winmm.dll")
	procTimeBeginPeriod        = winmm.NewProc("timeBeginPeriod")
)

const (
	createWaitableTimerHighResolution = 0x00000002
	timerAllAccess                    = 0x1F0003
)

// raiseResolution asks the kernel for its finest timer resolution. Failure
// only costs precision.
func raiseResolution() {
	var minRes, maxRes, current uint32
	r, _, _ := procNtQueryTimerResolution.Call(
		uintptr(unsafe.Pointer(&minRes)),
		uintptr(unsafe.Pointer(&maxRes)),
		uintptr(unsafe.Pointer(&current)),
	)
	if r == 0 {
		r, _, _ = procNtSetTimerResolution.Call(uintptr(maxRes), 1, uintptr(unsafe.Pointer(&current)))
		if r == 0 {
			slog.Debug("timer resolution raised", "resolution100ns", current)
			return
		}
	}

	if err := procTimeBeginPeriod.Find(); err == nil {
		procTimeBeginPeriod.Call(1)
		slog.Debug("timer resolution raised with timeBeginPeriod")
	}
}

type waitableTimer struct {
	mu     sync.Mutex
	handle windows.Handle
}

func newWaiter() (waiter, error) {
	h, _, err := procCreateWaitableTimerExW.Call(0, 0, createWaitableTimerHighResolution, timerAllAccess)
	if h == 0 {
		// Older systems do not know the high resolution flag.
		h, _, err = procCreateWaitableTimerExW.Call(0, 0, 0, timerAllAccess)
	}
	if h == 0 {
		return nil, err
	}
	return &waitableTimer{handle: windows.Handle(h)}, nil
}

func (w *waitableTimer) wait(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Relative due times are negative, in 100ns units.
	due := -int64(d / 100)
	r, _, _ := procSetWaitableTimer.Call(uintptr(w.handle), uintptr(unsafe.Pointer(&due)), 0, 0, 0, 0)
	if r == 0 {
		time.Sleep(d)
		return
	}
	windows.WaitForSingleObject(w.handle, windows.INFINITE)
}

func (w *waitableTimer) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.handle == 0 {
		return nil
	}
	err := windows.CloseHandle(w.handle)
	w.handle = 0
	return err
}
