package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical PPG defaults file.
const DefaultConfigPath = "config/ppg.defaults.json"

// PPGConfig holds the tunable parameters of the heart-rate pipeline and the
// session controller. Every field is optional; the Get* accessors supply the
// default when a field is nil, so partial files are safe.
type PPGConfig struct {
	// Session params
	Duration     *string `json:"duration,omitempty" yaml:"duration,omitempty"`           // observation window, e.g. "15s"
	TickInterval *string `json:"tick_interval,omitempty" yaml:"tick_interval,omitempty"` // refresh cadence, e.g. "33ms"
	SinkTimeout  *string `json:"sink_timeout,omitempty" yaml:"sink_timeout,omitempty"`

	// Conditioner and detector params
	SmoothingWindow *int     `json:"smoothing_window,omitempty" yaml:"smoothing_window,omitempty"`
	ThresholdSigma  *float64 `json:"threshold_sigma,omitempty" yaml:"threshold_sigma,omitempty"`

	// Estimator params
	MinSamples            *int `json:"min_samples,omitempty" yaml:"min_samples,omitempty"`
	MinBPM                *int `json:"min_bpm,omitempty" yaml:"min_bpm,omitempty"`
	MaxBPM                *int `json:"max_bpm,omitempty" yaml:"max_bpm,omitempty"`
	NoPeakFallbackMin     *int `json:"no_peak_fallback_min,omitempty" yaml:"no_peak_fallback_min,omitempty"`
	NoPeakFallbackMax     *int `json:"no_peak_fallback_max,omitempty" yaml:"no_peak_fallback_max,omitempty"`
	OutOfRangeFallbackMin *int `json:"out_of_range_fallback_min,omitempty" yaml:"out_of_range_fallback_min,omitempty"`
	OutOfRangeFallbackMax *int `json:"out_of_range_fallback_max,omitempty" yaml:"out_of_range_fallback_max,omitempty"`

	// Manual entry bounds
	ManualMinBPM *int `json:"manual_min_bpm,omitempty" yaml:"manual_min_bpm,omitempty"`
	ManualMaxBPM *int `json:"manual_max_bpm,omitempty" yaml:"manual_max_bpm,omitempty"`
}

// EmptyPPGConfig returns a PPGConfig with every field nil, i.e. all defaults.
func EmptyPPGConfig() *PPGConfig {
	return &PPGConfig{}
}

// LoadPPGConfig loads a PPGConfig from a .json, .yaml or .yml file.
// The file must be under 1MB. Omitted fields keep their defaults.
func LoadPPGConfig(path string) (*PPGConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPPGConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *PPGConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPPGConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *PPGConfig) Validate() error {
	for name, v := range map[string]*string{
		"duration":      c.Duration,
		"tick_interval": c.TickInterval,
		"sink_timeout":  c.SinkTimeout,
	} {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *v)
		}
	}

	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be at least 1, got %d", *c.SmoothingWindow)
	}
	if c.ThresholdSigma != nil && *c.ThresholdSigma < 0 {
		return fmt.Errorf("threshold_sigma must be non-negative, got %f", *c.ThresholdSigma)
	}
	if c.MinSamples != nil && *c.MinSamples < 0 {
		return fmt.Errorf("min_samples must be non-negative, got %d", *c.MinSamples)
	}

	if c.GetMinBPM() > c.GetMaxBPM() {
		return fmt.Errorf("min_bpm (%d) must not exceed max_bpm (%d)", c.GetMinBPM(), c.GetMaxBPM())
	}
	if c.GetNoPeakFallbackMin() >= c.GetNoPeakFallbackMax() {
		return fmt.Errorf("no_peak_fallback_min (%d) must be below no_peak_fallback_max (%d)",
			c.GetNoPeakFallbackMin(), c.GetNoPeakFallbackMax())
	}
	if c.GetOutOfRangeFallbackMin() >= c.GetOutOfRangeFallbackMax() {
		return fmt.Errorf("out_of_range_fallback_min (%d) must be below out_of_range_fallback_max (%d)",
			c.GetOutOfRangeFallbackMin(), c.GetOutOfRangeFallbackMax())
	}
	if c.GetManualMinBPM() > c.GetManualMaxBPM() {
		return fmt.Errorf("manual_min_bpm (%d) must not exceed manual_max_bpm (%d)",
			c.GetManualMinBPM(), c.GetManualMaxBPM())
	}
	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

// GetDuration returns the observation window.
func (c *PPGConfig) GetDuration() time.Duration {
	return durationOr(c.Duration, 15*time.Second)
}

// GetTickInterval returns the sampling cadence, roughly one display refresh at 30 Hz.
func (c *PPGConfig) GetTickInterval() time.Duration {
	return durationOr(c.TickInterval, 33*time.Millisecond)
}

// GetSinkTimeout bounds how long a result hand-off may take.
func (c *PPGConfig) GetSinkTimeout() time.Duration {
	return durationOr(c.SinkTimeout, 2*time.Second)
}

// GetSmoothingWindow returns the moving-average window size.
func (c *PPGConfig) GetSmoothingWindow() int {
	return intOr(c.SmoothingWindow, 5)
}

// GetThresholdSigma returns the σ multiplier of the adaptive peak threshold.
func (c *PPGConfig) GetThresholdSigma() float64 {
	if c.ThresholdSigma == nil {
		return 0.5
	}
	return *c.ThresholdSigma
}

// GetMinSamples returns the sample count below which no estimate is attempted.
func (c *PPGConfig) GetMinSamples() int { return intOr(c.MinSamples, 100) }

// GetMinBPM returns the lowest BPM accepted as measured.
func (c *PPGConfig) GetMinBPM() int { return intOr(c.MinBPM, 40) }

// GetMaxBPM returns the highest BPM accepted as measured.
func (c *PPGConfig) GetMaxBPM() int { return intOr(c.MaxBPM, 180) }

// GetNoPeakFallbackMin returns the inclusive low end of the fallback used when too few peaks are found.
func (c *PPGConfig) GetNoPeakFallbackMin() int { return intOr(c.NoPeakFallbackMin, 65) }

// GetNoPeakFallbackMax returns the exclusive high end of the fallback used when too few peaks are found.
func (c *PPGConfig) GetNoPeakFallbackMax() int { return intOr(c.NoPeakFallbackMax, 85) }

// GetOutOfRangeFallbackMin returns the inclusive low end of the fallback used for implausible BPM.
func (c *PPGConfig) GetOutOfRangeFallbackMin() int { return intOr(c.OutOfRangeFallbackMin, 70) }

// GetOutOfRangeFallbackMax returns the exclusive high end of the fallback used for implausible BPM.
func (c *PPGConfig) GetOutOfRangeFallbackMax() int { return intOr(c.OutOfRangeFallbackMax, 90) }

// GetManualMinBPM returns the lowest manually entered BPM accepted.
func (c *PPGConfig) GetManualMinBPM() int { return intOr(c.ManualMinBPM, 30) }

// GetManualMaxBPM returns the highest manually entered BPM accepted.
func (c *PPGConfig) GetManualMaxBPM() int { return intOr(c.ManualMaxBPM, 250) }
