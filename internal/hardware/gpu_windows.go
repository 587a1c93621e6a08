//go:build windows

package hardware

import (
	"fmt"
)

const defaultFFmpegPath = "bin/ffmpeg.exe"

// DetectGPUs lists video controllers through WMI.
func DetectGPUs() (GPUList, error) {
	cmd := Command("wmic", "path", "win32_videocontroller", "get", "name,adapterram,pnpdeviceid", "/format:csv")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("WMI GPU detection failed: %w", err)
	}
	return parseWMIC(string(out)), nil
}
