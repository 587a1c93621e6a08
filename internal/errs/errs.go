// Package errs defines the error kinds and numeric result codes shared by
// the capture, encode and boundary layers.
package errs

import (
	"errors"
	"sync"
)

var (
	ErrConfiguration      = errors.New("configuration error")
	ErrResourceTimeout    = errors.New("resource timeout")
	ErrBackend            = errors.New("backend error")
	ErrEncoderBusy        = errors.New("encoder busy")
	ErrClosed             = errors.New("capture session is closed")
	ErrCaptureUnsupported = errors.New("screen capture is not supported on this platform")
	ErrPlatformAPI        = errors.New("platform api error")
	ErrMonitorNotFound    = errors.New("monitor not found")
	ErrInvalidProfile     = errors.New("invalid profile")
)

// Result codes returned across the boundary API.
const (
	CodeOK             = 0
	CodeEncoderBusy    = -1
	CodeNoFrames       = -10
	CodeUnknown        = -11
	CodeInvalidProfile = 2
	CodeCodec          = 3
)

var (
	mu          sync.Mutex
	lastMessage string
)

// Code maps err to a boundary result code. Any error without a dedicated
// code is stored so Message(CodeUnknown) can return it later.
func Code(err error) int {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrEncoderBusy):
		return CodeEncoderBusy
	case errors.Is(err, ErrResourceTimeout):
		return CodeNoFrames
	case errors.Is(err, ErrInvalidProfile):
		return CodeInvalidProfile
	case errors.Is(err, ErrBackend):
		setLast(err.Error())
		return CodeCodec
	}
	setLast(err.Error())
	return CodeUnknown
}

// Message returns the human readable text for a result code.
func Message(code int) string {
	switch code {
	case CodeOK:
		return ""
	case CodeEncoderBusy:
		return "Another encoder is running, you can encode one video at a time"
	case CodeNoFrames:
		return "No frames are arriving"
	case CodeUnknown:
		mu.Lock()
		defer mu.Unlock()
		return lastMessage
	case CodeInvalidProfile:
		return "Invalid profile"
	case CodeCodec:
		mu.Lock()
		defer mu.Unlock()
		if lastMessage != "" {
			return lastMessage
		}
		return "Codec not found"
	}
	return "Unknown error"
}

func setLast(msg string) {
	mu.Lock()
	lastMessage = msg
	mu.Unlock()
}
