package ppg

import (
	"time"

	"github.com/banshee-data/pulse.report/internal/config"
)

// Analysis holds every intermediate series of one pipeline run, for charts
// and offline inspection.
type Analysis struct {
	Raw       []float64 `json:"raw"`
	Smoothed  []float64 `json:"smoothed"`
	Peaks     []int     `json:"peaks"`
	Threshold float64   `json:"threshold"`
	Reading   Reading   `json:"reading"`
}

// Analyze runs the conditioner, peak detector and estimator over raw samples
// collected across the window d.
func Analyze(raw []float64, d time.Duration, cfg *config.PPGConfig, est *Estimator) Analysis {
	if cfg == nil {
		cfg = config.EmptyPPGConfig()
	}
	if est == nil {
		est = NewEstimator(cfg, nil)
	}
	smoothed := Smooth(raw, cfg.GetSmoothingWindow())
	peaks, threshold := DetectPeaks(smoothed, cfg.GetThresholdSigma())
	return Analysis{
		Raw:       raw,
		Smoothed:  smoothed,
		Peaks:     peaks,
		Threshold: threshold,
		Reading:   est.Estimate(len(raw), d, peaks),
	}
}
