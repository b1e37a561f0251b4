package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func ptrInt(v int) *int           { return &v }
func ptrString(v string) *string  { return &v }
func ptrFloat(v float64) *float64 { return &v }

func TestEmptyPPGConfigDefaults(t *testing.T) {
	cfg := EmptyPPGConfig()

	if got := cfg.GetDuration(); got != 15*time.Second {
		t.Errorf("GetDuration() = %v, want 15s", got)
	}
	if got := cfg.GetTickInterval(); got != 33*time.Millisecond {
		t.Errorf("GetTickInterval() = %v, want 33ms", got)
	}
	if got := cfg.GetSmoothingWindow(); got != 5 {
		t.Errorf("GetSmoothingWindow() = %d, want 5", got)
	}
	if got := cfg.GetThresholdSigma(); got != 0.5 {
		t.Errorf("GetThresholdSigma() = %f, want 0.5", got)
	}
	if got := cfg.GetMinSamples(); got != 100 {
		t.Errorf("GetMinSamples() = %d, want 100", got)
	}
	if cfg.GetMinBPM() != 40 || cfg.GetMaxBPM() != 180 {
		t.Errorf("BPM bounds = [%d,%d], want [40,180]", cfg.GetMinBPM(), cfg.GetMaxBPM())
	}
	if cfg.GetNoPeakFallbackMin() != 65 || cfg.GetNoPeakFallbackMax() != 85 {
		t.Errorf("no-peak fallback = [%d,%d), want [65,85)", cfg.GetNoPeakFallbackMin(), cfg.GetNoPeakFallbackMax())
	}
	if cfg.GetOutOfRangeFallbackMin() != 70 || cfg.GetOutOfRangeFallbackMax() != 90 {
		t.Errorf("out-of-range fallback = [%d,%d), want [70,90)", cfg.GetOutOfRangeFallbackMin(), cfg.GetOutOfRangeFallbackMax())
	}
	if cfg.GetManualMinBPM() != 30 || cfg.GetManualMaxBPM() != 250 {
		t.Errorf("manual bounds = [%d,%d], want [30,250]", cfg.GetManualMinBPM(), cfg.GetManualMaxBPM())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should validate: %v", err)
	}
}

func TestMustLoadDefaultConfigMatchesBuiltins(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	empty := EmptyPPGConfig()

	if cfg.GetDuration() != empty.GetDuration() {
		t.Errorf("defaults file duration %v differs from builtin %v", cfg.GetDuration(), empty.GetDuration())
	}
	if cfg.GetSmoothingWindow() != empty.GetSmoothingWindow() {
		t.Errorf("defaults file window %d differs from builtin %d", cfg.GetSmoothingWindow(), empty.GetSmoothingWindow())
	}
	if cfg.GetMinSamples() != empty.GetMinSamples() {
		t.Errorf("defaults file min_samples %d differs from builtin %d", cfg.GetMinSamples(), empty.GetMinSamples())
	}
}

func TestLoadPPGConfigJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ppg.json")
	if err := os.WriteFile(path, []byte(`{"duration": "20s", "smoothing_window": 7}`), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadPPGConfig(path)
	if err != nil {
		t.Fatalf("LoadPPGConfig() error = %v", err)
	}
	if cfg.GetDuration() != 20*time.Second {
		t.Errorf("GetDuration() = %v, want 20s", cfg.GetDuration())
	}
	if cfg.GetSmoothingWindow() != 7 {
		t.Errorf("GetSmoothingWindow() = %d, want 7", cfg.GetSmoothingWindow())
	}
	// untouched fields keep defaults
	if cfg.GetMinSamples() != 100 {
		t.Errorf("GetMinSamples() = %d, want 100", cfg.GetMinSamples())
	}
}

func TestLoadPPGConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ppg.yaml")
	data := "tick_interval: 16ms\nthreshold_sigma: 0.75\nmax_bpm: 200\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadPPGConfig(path)
	if err != nil {
		t.Fatalf("LoadPPGConfig() error = %v", err)
	}
	if cfg.GetTickInterval() != 16*time.Millisecond {
		t.Errorf("GetTickInterval() = %v, want 16ms", cfg.GetTickInterval())
	}
	if cfg.GetThresholdSigma() != 0.75 {
		t.Errorf("GetThresholdSigma() = %f, want 0.75", cfg.GetThresholdSigma())
	}
	if cfg.GetMaxBPM() != 200 {
		t.Errorf("GetMaxBPM() = %d, want 200", cfg.GetMaxBPM())
	}
}

func TestLoadPPGConfigErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadPPGConfig(filepath.Join(dir, "nope.json")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("wrong extension", func(t *testing.T) {
		path := filepath.Join(dir, "ppg.txt")
		_ = os.WriteFile(path, []byte("{}"), 0644)
		_, err := LoadPPGConfig(path)
		if err == nil || !strings.Contains(err.Error(), "extension") {
			t.Errorf("expected extension error, got %v", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		_ = os.WriteFile(path, []byte(`{"duration": `), 0644)
		if _, err := LoadPPGConfig(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("fails validation", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.json")
		_ = os.WriteFile(path, []byte(`{"min_bpm": 200, "max_bpm": 100}`), 0644)
		_, err := LoadPPGConfig(path)
		if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     PPGConfig
		wantErr bool
	}{
		{"empty", PPGConfig{}, false},
		{"good duration", PPGConfig{Duration: ptrString("10s")}, false},
		{"bad duration", PPGConfig{Duration: ptrString("soon")}, true},
		{"negative tick", PPGConfig{TickInterval: ptrString("-5ms")}, true},
		{"zero window", PPGConfig{SmoothingWindow: ptrInt(0)}, true},
		{"negative sigma", PPGConfig{ThresholdSigma: ptrFloat(-1)}, true},
		{"negative min samples", PPGConfig{MinSamples: ptrInt(-1)}, true},
		{"inverted bpm bounds", PPGConfig{MinBPM: ptrInt(100), MaxBPM: ptrInt(90)}, true},
		{"empty no-peak range", PPGConfig{NoPeakFallbackMin: ptrInt(80), NoPeakFallbackMax: ptrInt(80)}, true},
		{"empty out-of-range range", PPGConfig{OutOfRangeFallbackMin: ptrInt(95)}, true},
		{"inverted manual bounds", PPGConfig{ManualMinBPM: ptrInt(300)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGettersFallBackOnUnparseableDuration(t *testing.T) {
	cfg := &PPGConfig{Duration: ptrString("garbage"), SinkTimeout: ptrString("")}
	if got := cfg.GetDuration(); got != 15*time.Second {
		t.Errorf("GetDuration() = %v, want default 15s", got)
	}
	if got := cfg.GetSinkTimeout(); got != 2*time.Second {
		t.Errorf("GetSinkTimeout() = %v, want default 2s", got)
	}
}
