package system

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"screenrec/internal/display"
	"screenrec/internal/hardware"
)

// Host summarizes the machine a recording runs on.
type Host struct {
	Hostname        string
	OS              string
	Platform        string
	PlatformVersion string
	CPUModel        string
	CPUCores        int
	MemoryTotal     uint64
	MemoryAvailable uint64
}

type Info struct {
	Host     Host
	Displays display.DisplayList
	Hardware *hardware.SystemInfo
}

// DetectHost fills in as much of Host as the platform reports. Partial
// results are returned together with the joined errors.
func DetectHost() (Host, error) {
	var h Host
	var errList []error

	if hi, err := host.Info(); err != nil {
		errList = append(errList, fmt.Errorf("host info: %w", err))
	} else {
		h.Hostname = hi.Hostname
		h.OS = hi.OS
		h.Platform = hi.Platform
		h.PlatformVersion = hi.PlatformVersion
	}

	if cpus, err := cpu.Info(); err != nil {
		errList = append(errList, fmt.Errorf("cpu info: %w", err))
	} else if len(cpus) > 0 {
		h.CPUModel = cpus[0].ModelName
	}
	if n, err := cpu.Counts(true); err == nil {
		h.CPUCores = n
	}

	if vm, err := mem.VirtualMemory(); err != nil {
		errList = append(errList, fmt.Errorf("memory info: %w", err))
	} else {
		h.MemoryTotal = vm.Total
		h.MemoryAvailable = vm.Available
	}

	return h, errors.Join(errList...)
}

// Detect collects host, display and encoder information. Only a missing
// display is fatal.
func Detect() (*Info, error) {
	h, err := DetectHost()
	if err != nil {
		slog.Warn("incomplete host information", "error", err)
	}

	displays, err := display.DetectDisplays()
	if err != nil {
		return nil, fmt.Errorf("failed to detect displays: %w", err)
	}

	return &Info{
		Host:     h,
		Displays: displays,
		Hardware: hardware.Detect(),
	}, nil
}

func (i *Info) Print() {
	slog.Info("host",
		"name", i.Host.Hostname,
		"os", fmt.Sprintf("%s %s %s", i.Host.OS, i.Host.Platform, i.Host.PlatformVersion),
		"cpu", i.Host.CPUModel,
		"cores", i.Host.CPUCores,
		"memory", FormatBytes(i.Host.MemoryTotal),
		"available", FormatBytes(i.Host.MemoryAvailable),
	)

	for _, d := range i.Displays {
		slog.Info("detected display",
			"index", d.Index,
			"resolution", fmt.Sprintf("%dx%d", d.Width, d.Height),
			"origin", fmt.Sprintf("%d,%d", d.X, d.Y),
			"refresh", d.RefreshRate,
			"primary", d.IsPrimary,
		)
	}

	if i.Hardware != nil {
		i.Hardware.Print()
		slog.Info("preferred transcoder encoder", "name", i.Hardware.BestEncoder())
	}
}

// SelectBestDisplay returns the primary display, else the first one.
func (i *Info) SelectBestDisplay() *display.Display {
	if primary := i.Displays.FindPrimary(); primary != nil {
		return primary
	}
	if len(i.Displays) > 0 {
		return i.Displays[0]
	}
	return nil
}

func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
