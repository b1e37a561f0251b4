package ppg

// DefaultSmoothingWindow is the moving-average width used when none is set.
const DefaultSmoothingWindow = 5

// Smooth applies a centred moving average of the given window to raw. The
// radius is window/2; near the edges the window is truncated to [0, n) rather
// than padded or wrapped, so a constant input is returned unchanged. The
// result has the same length as raw.
func Smooth(raw []float64, window int) []float64 {
	if window < 1 {
		window = DefaultSmoothingWindow
	}
	n := len(raw)
	out := make([]float64, n)
	r := window / 2
	for i := range raw {
		lo := max(0, i-r)
		hi := min(n-1, i+r)
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += raw[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}
