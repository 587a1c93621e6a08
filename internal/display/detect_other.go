//go:build !windows

package display

// enrich marks the display at the desktop origin as primary.
func enrich(displays DisplayList) {
	for _, d := range displays {
		d.Name = d.FriendlyName
		if d.X == 0 && d.Y == 0 {
			d.IsPrimary = true
			return
		}
	}
}
