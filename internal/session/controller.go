package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pulse.report/internal/capture"
	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/timeutil"
	"github.com/banshee-data/pulse.report/internal/vitals"
)

var logf = monitoring.Component("session")

// Options configures a Controller. Only Source is required.
type Options struct {
	Source    capture.Source
	Config    *config.PPGConfig
	Clock     timeutil.Clock
	Estimator *ppg.Estimator
	Sink      vitals.Sink
	Journal   Journal
	Progress  ProgressFunc

	// Extract turns a frame into one intensity sample. Defaults to
	// ppg.RegionIntensity.
	Extract func(capture.Frame) (float64, error)
}

// Controller owns at most one recording session at a time. A newer Start
// replaces a running session: the old device is released before the new
// one is acquired, so two devices are never held together.
//
// Tick, Start, Stop and Status serialise on one mutex. A Stop issued while a
// frame is being extracted waits for that tick to finish.
type Controller struct {
	source   capture.Source
	cfg      *config.PPGConfig
	clock    timeutil.Clock
	est      *ppg.Estimator
	sink     vitals.Sink
	journal  Journal
	progress ProgressFunc
	extract  func(capture.Frame) (float64, error)
	duration time.Duration

	mu              sync.Mutex
	active          *recording
	lastOutcome     Outcome
	lastMeasurement *vitals.Measurement
	lastAnalysis    *ppg.Analysis
}

// recording is the live state of the session being sampled.
type recording struct {
	Session
	device capture.Device
	raw    []float64
}

// NewController builds a controller from opts.
func NewController(opts Options) *Controller {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.EmptyPPGConfig()
	}
	c := &Controller{
		source:   opts.Source,
		cfg:      cfg,
		clock:    opts.Clock,
		est:      opts.Estimator,
		sink:     opts.Sink,
		journal:  opts.Journal,
		progress: opts.Progress,
		extract:  opts.Extract,
		duration: cfg.GetDuration(),
	}
	if c.source == nil {
		c.source = capture.NewDisabledSource()
	}
	if c.clock == nil {
		c.clock = timeutil.RealClock{}
	}
	if c.est == nil {
		c.est = ppg.NewEstimator(cfg, nil)
	}
	if c.sink == nil {
		c.sink = vitals.Discard
	}
	if c.progress == nil {
		c.progress = func(string, float64) {}
	}
	if c.extract == nil {
		c.extract = ppg.RegionIntensity
	}
	return c
}

// Start begins a new session. A session already recording is stopped first
// and its device released. If the device cannot be acquired the controller
// stays idle and the error wraps capture.ErrDeviceUnavailable.
func (c *Controller) Start(ctx context.Context) (Session, error) {
	c.mu.Lock()
	var replaced *Summary
	if c.active != nil {
		s := c.finishLocked(OutcomeReplaced, c.clock.Now())
		replaced = &s
	}

	dev, err := c.source.Acquire(ctx)
	if err != nil {
		c.mu.Unlock()
		c.writeJournal(replaced)
		monitoring.DeviceFailures.Inc()
		if !errors.Is(err, capture.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", capture.ErrDeviceUnavailable, err)
		}
		logf("start failed: %v", err)
		return Session{}, err
	}

	rec := &recording{
		Session: Session{
			ID:        uuid.New().String(),
			State:     Recording,
			Source:    c.source.Name(),
			StartedAt: c.clock.Now(),
			Duration:  c.duration,
		},
		device: dev,
		raw:    make([]float64, 0, c.expectedSamples()),
	}
	c.active = rec
	snap := rec.Session
	c.mu.Unlock()

	c.writeJournal(replaced)
	monitoring.SessionsStarted.Inc()
	logf("started %s on %s for %v", snap.ID, snap.Source, snap.Duration)
	c.progress(snap.ID, 0)
	return snap, nil
}

func (c *Controller) expectedSamples() int {
	tick := c.cfg.GetTickInterval()
	if tick <= 0 {
		return 0
	}
	return int(c.duration/tick) + 1
}

// Tick runs one iteration of the sampling loop. It does nothing unless a
// session is recording. Each tick reports progress, extracts one sample
// from the current frame, and completes the session once the observation
// window has elapsed. Frames that fail extraction are counted as skipped.
func (c *Controller) Tick() {
	c.mu.Lock()
	rec := c.active
	if rec == nil {
		c.mu.Unlock()
		return
	}

	now := c.clock.Now()
	elapsed := now.Sub(rec.StartedAt)
	fraction := 1.0
	if c.duration > 0 {
		fraction = min(float64(elapsed)/float64(c.duration), 1)
	}
	rec.Progress = fraction
	c.sampleLocked(rec)

	if elapsed < c.duration {
		c.mu.Unlock()
		c.progress(rec.ID, fraction)
		return
	}

	summary := c.finishLocked(OutcomeCompleted, now)
	analysis := ppg.Analyze(rec.raw, c.duration, c.cfg, c.est)
	m := vitals.FromReading(rec.ID, analysis.Reading, now)
	c.lastAnalysis = &analysis
	c.lastMeasurement = &m
	c.mu.Unlock()

	monitoring.Readings.WithLabelValues(string(analysis.Reading.Provenance)).Inc()
	monitoring.SessionSamples.Observe(float64(len(rec.raw)))
	logf("completed %s: %d bpm (%s) from %d samples, %d peaks, %d skipped",
		rec.ID, m.BPM, m.Provenance, len(rec.raw), len(analysis.Peaks), rec.Skipped)

	c.progress(rec.ID, 1)
	c.deliver(m)
	c.writeJournal(&summary)
}

// sampleLocked appends one intensity sample. Device errors, extraction
// errors and extractor panics skip the frame.
func (c *Controller) sampleLocked(rec *recording) {
	defer func() {
		if r := recover(); r != nil {
			c.skipLocked(rec, fmt.Errorf("extractor panic: %v", r))
		}
	}()
	frame, err := rec.device.CurrentFrame()
	if err != nil {
		c.skipLocked(rec, err)
		return
	}
	v, err := c.extract(frame)
	if err != nil {
		c.skipLocked(rec, err)
		return
	}
	rec.raw = append(rec.raw, v)
	rec.Samples = len(rec.raw)
}

func (c *Controller) skipLocked(rec *recording, err error) {
	rec.Skipped++
	monitoring.FramesSkipped.Inc()
	if rec.Skipped == 1 {
		logf("%s: skipping frame: %v", rec.ID, err)
	}
}

// Stop ends the recording session without producing a reading. The device
// is released exactly once. It returns ErrNotRecording when nothing is
// recording, including on a second call.
func (c *Controller) Stop() (Session, error) {
	c.mu.Lock()
	rec := c.active
	if rec == nil {
		c.mu.Unlock()
		return Session{}, ErrNotRecording
	}
	summary := c.finishLocked(OutcomeStopped, c.clock.Now())
	snap := rec.Session
	c.mu.Unlock()

	logf("stopped %s after %d samples", snap.ID, snap.Samples)
	c.writeJournal(&summary)
	return snap, nil
}

// finishLocked releases the device and returns the controller to idle.
func (c *Controller) finishLocked(outcome Outcome, now time.Time) Summary {
	rec := c.active
	c.active = nil
	c.lastOutcome = outcome

	switch outcome {
	case OutcomeCompleted:
		rec.State = Completed
	default:
		rec.State = Stopped
	}
	if err := rec.device.Release(); err != nil {
		logf("%s: release failed: %v", rec.ID, err)
	}
	monitoring.SessionsFinished.WithLabelValues(string(outcome)).Inc()
	if outcome == OutcomeReplaced {
		logf("replaced %s after %d samples", rec.ID, rec.Samples)
	}

	return Summary{
		ID:        rec.ID,
		Source:    rec.Source,
		StartedAt: rec.StartedAt,
		EndedAt:   now,
		Outcome:   outcome,
		Samples:   rec.Samples,
		Skipped:   rec.Skipped,
	}
}

func (c *Controller) deliver(m vitals.Measurement) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.GetSinkTimeout())
	defer cancel()
	if err := c.sink.Record(ctx, m); err != nil {
		logf("%s: result sink: %v", m.SessionID, err)
	}
}

func (c *Controller) writeJournal(s *Summary) {
	if s == nil || c.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.GetSinkTimeout())
	defer cancel()
	if err := c.journal.RecordSession(ctx, *s); err != nil {
		logf("%s: journal: %v", s.ID, err)
	}
}

// Drive calls Tick on every interval until ctx is done. A non-positive
// interval uses the configured tick interval.
func (c *Controller) Drive(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = c.cfg.GetTickInterval()
	}
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			c.Tick()
		}
	}
}

// Close stops any recording session. It is safe to call when idle.
func (c *Controller) Close() {
	if _, err := c.Stop(); err != nil && !errors.Is(err, ErrNotRecording) {
		logf("close: %v", err)
	}
}

// Status is a point-in-time view of the controller.
type Status struct {
	State           State               `json:"state"`
	Source          string              `json:"source"`
	Session         *Session            `json:"session,omitempty"`
	LastOutcome     Outcome             `json:"last_outcome,omitempty"`
	LastMeasurement *vitals.Measurement `json:"last_measurement,omitempty"`
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:       Idle,
		Source:      c.source.Name(),
		LastOutcome: c.lastOutcome,
	}
	if c.active != nil {
		s := c.active.Session
		st.State = Recording
		st.Session = &s
	}
	if c.lastMeasurement != nil {
		m := *c.lastMeasurement
		st.LastMeasurement = &m
	}
	return st
}

// LastAnalysis returns the pipeline output of the most recent completed
// session.
func (c *Controller) LastAnalysis() (ppg.Analysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastAnalysis == nil {
		return ppg.Analysis{}, false
	}
	return *c.lastAnalysis, true
}

// Duration returns the configured observation window.
func (c *Controller) Duration() time.Duration { return c.duration }
