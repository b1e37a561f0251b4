// Package ppg turns a sequence of frame intensities into a heart-rate
// reading using simplified photoplethysmography.
//
// The pipeline runs strictly downstream:
//
//	RegionIntensity -> Smooth -> DetectPeaks -> Estimator.Estimate
//
// Every stage is a pure function of its input apart from the estimator's
// fallback draws, which come from an injected random source so tests can
// pin them.
package ppg
