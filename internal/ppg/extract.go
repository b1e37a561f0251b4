package ppg

import (
	"errors"

	"github.com/banshee-data/pulse.report/internal/capture"
)

// Frames that report no dimensions are assumed to be this size.
const (
	DefaultFrameWidth  = 320
	DefaultFrameHeight = 240
)

// ErrRegionUnavailable is returned when a frame's pixel buffer does not cover
// the central sampling region.
var ErrRegionUnavailable = errors.New("sampling region unavailable")

// RegionIntensity returns the mean red level over the central half of the
// frame: x in [W/4, 3W/4), y in [H/4, 3H/4). The frame is only read.
func RegionIntensity(f capture.Frame) (float64, error) {
	w, h := f.Width, f.Height
	if w == 0 {
		w = DefaultFrameWidth
	}
	if h == 0 {
		h = DefaultFrameHeight
	}
	if w < 0 || h < 0 {
		return 0, ErrRegionUnavailable
	}

	// The buffer must hold w*h pixels. Compared by division so oversized
	// dimensions cannot overflow.
	bpp := f.Format.BytesPerPixel()
	if w > len(f.Data)/bpp || h > len(f.Data)/(w*bpp) {
		return 0, ErrRegionUnavailable
	}
	stride := w * bpp

	x0, x1 := w/4, 3*w/4
	y0, y1 := h/4, 3*h/4
	count := (x1 - x0) * (y1 - y0)
	if count <= 0 {
		return 0, ErrRegionUnavailable
	}

	var sum uint64
	for y := y0; y < y1; y++ {
		row := f.Data[y*stride:]
		for x := x0; x < x1; x++ {
			sum += uint64(row[x*bpp])
		}
	}
	return float64(sum) / float64(count), nil
}
