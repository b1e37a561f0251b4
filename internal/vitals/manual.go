package vitals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/timeutil"
)

// ErrBPMOutOfRange is returned for manual entries outside the accepted range.
var ErrBPMOutOfRange = errors.New("heart rate out of range")

// MaxNotesLength bounds the free-text notes stored with a manual entry.
const MaxNotesLength = 500

// Recorder validates manually entered heart rates. An entry is accepted
// once the store has it; notify sinks (live events, NATS) are best effort.
type Recorder struct {
	store   Sink
	notify  Sink
	minBPM  int
	maxBPM  int
	timeout time.Duration
	clock   timeutil.Clock
}

// NewRecorder builds a recorder using the manual bounds and sink timeout
// from cfg. notify may be nil.
func NewRecorder(store, notify Sink, cfg *config.PPGConfig, clock timeutil.Clock) *Recorder {
	if cfg == nil {
		cfg = config.EmptyPPGConfig()
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if store == nil {
		store = Discard
	}
	if notify == nil {
		notify = Discard
	}
	return &Recorder{
		store:   store,
		notify:  notify,
		minBPM:  cfg.GetManualMinBPM(),
		maxBPM:  cfg.GetManualMaxBPM(),
		timeout: cfg.GetSinkTimeout(),
		clock:   clock,
	}
}

// Validate reports whether bpm lies within the inclusive manual range.
func (r *Recorder) Validate(bpm int) error {
	if bpm < r.minBPM || bpm > r.maxBPM {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrBPMOutOfRange, bpm, r.minBPM, r.maxBPM)
	}
	return nil
}

// RecordManual validates bpm and records it. A zero at means now. Rejected
// values never reach a sink. Each hand-off is bounded by the sink timeout;
// only a store failure fails the entry.
func (r *Recorder) RecordManual(ctx context.Context, bpm int, at time.Time, notes string) (Measurement, error) {
	if err := r.Validate(bpm); err != nil {
		monitoring.ManualEntries.WithLabelValues("rejected").Inc()
		return Measurement{}, err
	}
	if at.IsZero() {
		at = r.clock.Now()
	}
	notes = strings.TrimSpace(notes)
	if runes := []rune(notes); len(runes) > MaxNotesLength {
		notes = string(runes[:MaxNotesLength])
	}

	m := Measurement{
		ID:         uuid.NewString(),
		BPM:        bpm,
		Timestamp:  at.UTC(),
		Source:     SourceManual,
		Provenance: ppg.Measured,
		Notes:      notes,
	}
	if err := r.record(ctx, r.store, m); err != nil {
		return Measurement{}, fmt.Errorf("recording manual entry: %w", err)
	}
	monitoring.ManualEntries.WithLabelValues("accepted").Inc()
	if err := r.record(ctx, r.notify, m); err != nil {
		monitoring.Logf("[vitals] manual entry %s stored, notify failed: %v", m.ID, err)
	}
	return m, nil
}

func (r *Recorder) record(ctx context.Context, sink Sink, m Measurement) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return sink.Record(ctx, m)
}
