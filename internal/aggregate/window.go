package aggregate

import (
	"time"
)

// WindowState tracks one entity's current tumbling window. Qualifying counts
// accumulate until the window boundary passes; Fired records whether this
// window already produced an alert.
type WindowState struct {
	Entity     string
	StartMs    int64
	EndMs      int64
	Qualifying int
	LastValue  float64
	Fired      bool
}

// windowStart aligns tsMs down to a tumbling window boundary. Go's % truncates
// toward zero, so pre-epoch timestamps need the floored remainder.
func windowStart(tsMs int64, size time.Duration) int64 {
	w := size.Milliseconds()
	if w <= 0 {
		return tsMs
	}
	r := tsMs % w
	if r < 0 {
		r += w
	}
	return tsMs - r
}
