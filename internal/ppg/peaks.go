package ppg

import "gonum.org/v1/gonum/stat"

// DefaultThresholdSigma scales the standard deviation added to the mean to
// form the peak threshold.
const DefaultThresholdSigma = 0.5

// DetectPeaks returns the indices of local maxima in smoothed together with
// the threshold they had to exceed. The threshold is mean + sigmaFactor*σ
// using the population standard deviation. Index i is a peak when
// 2 <= i < n-2, smoothed[i] is strictly greater than its two neighbours on
// each side, and smoothed[i] > threshold. Indices are strictly increasing and
// no two are closer than three samples apart.
func DetectPeaks(smoothed []float64, sigmaFactor float64) ([]int, float64) {
	n := len(smoothed)
	if n == 0 {
		return nil, 0
	}
	mean, std := stat.PopMeanStdDev(smoothed, nil)
	threshold := mean + sigmaFactor*std

	var peaks []int
	for i := 2; i < n-2; i++ {
		v := smoothed[i]
		if v > smoothed[i-1] && v > smoothed[i+1] &&
			v > smoothed[i-2] && v > smoothed[i+2] &&
			v > threshold {
			peaks = append(peaks, i)
		}
	}
	return peaks, threshold
}
