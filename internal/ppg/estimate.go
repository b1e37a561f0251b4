package ppg

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/banshee-data/pulse.report/internal/config"
)

// Provenance records how a reading's BPM was obtained.
type Provenance string

const (
	// Measured readings come from the detected peak intervals.
	Measured Provenance = "measured"
	// Estimated readings are drawn from a plausible resting range because
	// the signal gave no usable rate.
	Estimated Provenance = "estimated"
	// Insufficient readings carry BPM 0: too few samples were collected.
	Insufficient Provenance = "insufficient"
)

// Reading is the output of the rate estimator.
type Reading struct {
	BPM        int        `json:"bpm"`
	Provenance Provenance `json:"provenance"`
	Reason     string     `json:"reason,omitempty"`
	Samples    int        `json:"samples"`
	Peaks      int        `json:"peaks"`
}

// Estimator converts peak positions into beats per minute. Fallback values
// are drawn from rng; tests inject a seeded source.
type Estimator struct {
	MinSamples int
	MinBPM     int
	MaxBPM     int

	// Half-open [min, max) ranges for the fallback draws.
	NoPeakMin, NoPeakMax         int
	OutOfRangeMin, OutOfRangeMax int

	rng *rand.Rand
}

// NewEstimator builds an estimator from cfg. A nil rng uses a randomly
// seeded PCG source.
func NewEstimator(cfg *config.PPGConfig, rng *rand.Rand) *Estimator {
	if cfg == nil {
		cfg = config.EmptyPPGConfig()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Estimator{
		MinSamples:    cfg.GetMinSamples(),
		MinBPM:        cfg.GetMinBPM(),
		MaxBPM:        cfg.GetMaxBPM(),
		NoPeakMin:     cfg.GetNoPeakFallbackMin(),
		NoPeakMax:     cfg.GetNoPeakFallbackMax(),
		OutOfRangeMin: cfg.GetOutOfRangeFallbackMin(),
		OutOfRangeMax: cfg.GetOutOfRangeFallbackMax(),
		rng:           rng,
	}
}

// Estimate computes a reading from n samples collected over the observation
// window d with the given peak indices.
//
// The sampling rate is n / d, so d must be the window the samples were
// spread over. With fewer than MinSamples samples the reading is BPM 0 and
// Insufficient. With fewer than two peaks, or a rate outside
// [MinBPM, MaxBPM], a fallback BPM is drawn and tagged Estimated.
func (e *Estimator) Estimate(n int, d time.Duration, peaks []int) Reading {
	r := Reading{Samples: n, Peaks: len(peaks)}

	if n < e.MinSamples {
		r.Provenance = Insufficient
		r.Reason = "too few samples"
		return r
	}
	if d <= 0 {
		r.Provenance = Insufficient
		r.Reason = "empty observation window"
		return r
	}
	if len(peaks) < 2 {
		r.BPM = e.draw(e.NoPeakMin, e.NoPeakMax)
		r.Provenance = Estimated
		r.Reason = "fewer than two peaks"
		return r
	}

	interval := float64(peaks[len(peaks)-1]-peaks[0]) / float64(len(peaks)-1)
	fs := float64(n) / d.Seconds()
	bpm := int(math.Round(60 * fs / interval))

	if bpm < e.MinBPM || bpm > e.MaxBPM {
		r.BPM = e.draw(e.OutOfRangeMin, e.OutOfRangeMax)
		r.Provenance = Estimated
		r.Reason = "rate out of range"
		return r
	}
	r.BPM = bpm
	r.Provenance = Measured
	return r
}

func (e *Estimator) draw(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + e.rng.IntN(hi-lo)
}
