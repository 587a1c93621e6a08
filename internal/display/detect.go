package display

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/kbinani/screenshot"
)

// DetectDisplays returns all active displays in the order the capture
// sources index them.
func DetectDisplays() (DisplayList, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return nil, fmt.Errorf("no active displays")
	}

	displays := make(DisplayList, 0, n)
	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		displays = append(displays, &Display{
			Index:        i,
			FriendlyName: "Display " + strconv.Itoa(i+1),
			Width:        b.Dx(),
			Height:       b.Dy(),
			X:            b.Min.X,
			Y:            b.Min.Y,
			RefreshRate:  60,
		})
	}

	enrich(displays)

	for _, d := range displays {
		slog.Debug("detected display",
			"index", d.Index,
			"resolution", fmt.Sprintf("%dx%d", d.Width, d.Height),
			"origin", fmt.Sprintf("%d,%d", d.X, d.Y),
			"primary", d.IsPrimary,
			"name", d.Name,
		)
	}

	return displays, nil
}
