//go:build windows

package display

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procEnumDisplayMonitors  = user32.NewProc("EnumDisplayMonitors")
	procGetMonitorInfoW      = user32.NewProc("GetMonitorInfoW")
	procEnumDisplaySettingsW = user32.NewProc("EnumDisplaySettingsW")
)

type rect struct {
	Left, Top, Right, Bottom int32
}

// MONITORINFOEXW
type monitorInfoExW struct {
	CbSize    uint32
	RcMonitor rect
	RcWork    rect
	DwFlags   uint32
	SzDevice  [32]uint16
}

// DEVMODEW, display variant of the union.
type devMode struct {
	DeviceName       [32]uint16
	SpecVersion      uint16
	DriverVersion    uint16
	Size             uint16
	DriverExtra      uint16
	Fields           uint32
	PositionX        int32
	PositionY        int32
	Orientation      uint32
	FixedOutput      uint32
	Color            int16
	Duplex           int16
	YResolution      int16
	TTOption         int16
	Collate          int16
	FormName         [32]uint16
	LogPixels        uint16
	BitsPerPel       uint32
	PelsWidth        uint32
	PelsHeight       uint32
	DisplayFlags     uint32
	DisplayFrequency uint32
}

const (
	monitorInfoFPrimary = 0x00000001
	enumCurrentSettings = 0xFFFFFFFF
)

// enrich fills names, primary flag and refresh rate by matching each
// display's rectangle against the monitors Windows reports.
func enrich(displays DisplayList) {
	type winMonitor struct {
		bounds     rect
		isPrimary  bool
		deviceName string
	}

	var monitors []winMonitor
	callback := windows.NewCallback(func(hMonitor, hdc, lprcClip, lParam uintptr) uintptr {
		var info monitorInfoExW
		info.CbSize = uint32(unsafe.Sizeof(info))

		ret, _, _ := procGetMonitorInfoW.Call(hMonitor, uintptr(unsafe.Pointer(&info)))
		if ret != 0 {
			monitors = append(monitors, winMonitor{
				bounds:     info.RcMonitor,
				isPrimary:  info.DwFlags&monitorInfoFPrimary != 0,
				deviceName: windows.UTF16ToString(info.SzDevice[:]),
			})
		}
		return 1
	})
	procEnumDisplayMonitors.Call(0, 0, callback, 0)

	for _, d := range displays {
		for _, m := range monitors {
			if int(m.bounds.Left) == d.X && int(m.bounds.Top) == d.Y &&
				int(m.bounds.Right-m.bounds.Left) == d.Width && int(m.bounds.Bottom-m.bounds.Top) == d.Height {
				d.IsPrimary = m.isPrimary
				d.Name = m.deviceName
				if hz := refreshRate(m.deviceName); hz > 0 {
					d.RefreshRate = hz
				}
				break
			}
		}
	}
}

func refreshRate(deviceName string) int {
	name, err := windows.UTF16PtrFromString(deviceName)
	if err != nil {
		return 0
	}
	var dm devMode
	dm.Size = uint16(unsafe.Sizeof(dm))
	ret, _, _ := procEnumDisplaySettingsW.Call(
		uintptr(unsafe.Pointer(name)),
		uintptr(enumCurrentSettings),
		uintptr(unsafe.Pointer(&dm)),
	)
	if ret == 0 {
		return 0
	}
	return int(dm.DisplayFrequency)
}
