// Package session runs a bounded camera measurement: it owns the capture
// device for the life of one session, samples one intensity per display
// refresh, and hands the finished reading to the result sinks.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotRecording is returned by Stop when no session is recording.
var ErrNotRecording = errors.New("no session recording")

// State is the controller's lifecycle state.
type State string

const (
	Idle      State = "idle"
	Recording State = "recording"
	Completed State = "completed"
	Stopped   State = "stopped"
)

// Outcome records how a session ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
	// OutcomeReplaced marks a session force-stopped by a newer Start.
	OutcomeReplaced Outcome = "replaced"
)

// Session is a snapshot of one measurement session.
type Session struct {
	ID        string        `json:"id"`
	State     State         `json:"state"`
	Source    string        `json:"source"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Progress  float64       `json:"progress"`
	Samples   int           `json:"samples"`
	Skipped   int           `json:"skipped"`
}

// Summary is the journal record written when a session ends.
type Summary struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Outcome   Outcome   `json:"outcome"`
	Samples   int       `json:"samples"`
	Skipped   int       `json:"skipped"`
}

// Journal persists session summaries.
type Journal interface {
	RecordSession(ctx context.Context, s Summary) error
}

// ProgressFunc receives the fraction of the observation window elapsed, in
// [0, 1], once per tick.
type ProgressFunc func(sessionID string, fraction float64)
