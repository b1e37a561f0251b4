// Package vitals holds the heart-rate measurement record and the sinks that
// receive it once a camera session completes or a value is entered by hand.
package vitals

import (
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

// Source says where a measurement came from.
type Source string

const (
	SourceCamera Source = "camera"
	SourceManual Source = "manual"
)

// Measurement is one recorded heart rate. It is immutable once built.
type Measurement struct {
	ID         string         `json:"id"`
	BPM        int            `json:"heart_rate"`
	Timestamp  time.Time      `json:"timestamp"`
	Source     Source         `json:"source"`
	Provenance ppg.Provenance `json:"provenance"`
	SessionID  string         `json:"session_id,omitempty"`
	Samples    int            `json:"samples,omitempty"`
	Notes      string         `json:"notes,omitempty"`
}

// FromReading builds the measurement for a completed camera session.
func FromReading(sessionID string, r ppg.Reading, at time.Time) Measurement {
	return Measurement{
		ID:         uuid.NewString(),
		BPM:        r.BPM,
		Timestamp:  at.UTC(),
		Source:     SourceCamera,
		Provenance: r.Provenance,
		SessionID:  sessionID,
		Samples:    r.Samples,
		Notes:      r.Reason,
	}
}
