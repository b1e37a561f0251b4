package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/pulse.report/internal/capture"
	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/session"
	"github.com/banshee-data/pulse.report/internal/timeutil"
)

// loadCSV reads one sample per row from the last column. A non-numeric
// first row is treated as a header.
func loadCSV(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []float64
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 {
			continue
		}
		field := strings.TrimSpace(rec[len(rec)-1])
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("no samples")
	}
	return out, nil
}

// syntheticSession records one session from the synthetic source through
// the session controller on a mock clock, ticking every tick until the
// window d closes, and returns the pipeline output of that session.
func syntheticSession(cfg *config.PPGConfig, d, tick time.Duration) (ppg.Analysis, error) {
	if tick <= 0 {
		return ppg.Analysis{}, fmt.Errorf("invalid tick %v", tick)
	}
	if d <= 0 {
		return ppg.Analysis{}, fmt.Errorf("invalid duration %v", d)
	}
	if cfg == nil {
		cfg = config.EmptyPPGConfig()
	}
	sessionCfg := *cfg
	window := d.String()
	sessionCfg.Duration = &window

	clock := timeutil.NewMockClock(time.Unix(0, 0).UTC())
	ctrl := session.NewController(session.Options{
		Source:    capture.NewSyntheticSource(capture.DefaultSyntheticConfig(), clock),
		Config:    &sessionCfg,
		Clock:     clock,
		Estimator: ppg.NewEstimator(&sessionCfg, nil),
	})
	defer ctrl.Close()

	if _, err := ctrl.Start(context.Background()); err != nil {
		return ppg.Analysis{}, err
	}
	maxTicks := int(d/tick) + 2
	for i := 0; i < maxTicks && ctrl.Status().State == session.Recording; i++ {
		clock.Advance(tick)
		ctrl.Tick()
	}
	a, ok := ctrl.LastAnalysis()
	if !ok {
		return ppg.Analysis{}, errors.New("synthetic session did not complete")
	}
	return a, nil
}
