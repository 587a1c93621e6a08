package display

import (
	"fmt"

	"screenrec/internal/errs"
	"screenrec/internal/gfx"
)

type Display struct {
	Index        int
	Name         string
	FriendlyName string
	IsPrimary    bool
	Width        int
	Height       int
	RefreshRate  int
	X, Y         int
}

func (d *Display) String() string {
	primary := ""
	if d.IsPrimary {
		primary = " [primary]"
	}
	return fmt.Sprintf("[%d] %dx%d at (%d,%d)%s %s", d.Index, d.Width, d.Height, d.X, d.Y, primary, d.Name)
}

// Contains reports whether the screen rectangle (x, y, w, h) lies entirely
// on d.
func (d *Display) Contains(x, y, w, h int) bool {
	return x >= d.X && y >= d.Y && x+w <= d.X+d.Width && y+h <= d.Y+d.Height
}

type DisplayList []*Display

func (l DisplayList) FindByIndex(index int) *Display {
	for _, d := range l {
		if d.Index == index {
			return d
		}
	}
	return nil
}

func (l DisplayList) FindPrimary() *Display {
	for _, d := range l {
		if d.IsPrimary {
			return d
		}
	}
	if len(l) > 0 {
		return l[0]
	}
	return nil
}

// FindContaining returns the first display that fully contains the screen
// rectangle (x, y, w, h), together with the rectangle translated into that
// display's coordinates.
func (l DisplayList) FindContaining(x, y, w, h int) (*Display, gfx.Box, error) {
	if w <= 0 || h <= 0 {
		return nil, gfx.Box{}, fmt.Errorf("%w: empty capture region %dx%d", errs.ErrConfiguration, w, h)
	}
	for _, d := range l {
		if d.Contains(x, y, w, h) {
			left, top := x-d.X, y-d.Y
			return d, gfx.Box{Left: left, Top: top, Right: left + w, Bottom: top + h}, nil
		}
	}
	return nil, gfx.Box{}, fmt.Errorf("%w: no monitor fully contains (%d, %d) (%d x %d)",
		errs.ErrMonitorNotFound, x, y, w, h)
}
