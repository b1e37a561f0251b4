package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/vitals"
)

// ErrNotFound is returned when a lookup by ID matches no row.
var ErrNotFound = errors.New("not found")

// Limits for RecentMeasurements.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Record implements vitals.Sink by inserting m into the history.
func (db *DB) Record(ctx context.Context, m vitals.Measurement) error {
	var sessionID sql.NullString
	if m.SessionID != "" {
		sessionID = sql.NullString{String: m.SessionID, Valid: true}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO measurements (
			measurement_id, heart_rate, timestamp_ns, source, provenance,
			session_id, samples, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.BPM, m.Timestamp.UnixNano(), string(m.Source), string(m.Provenance),
		sessionID, m.Samples, m.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert measurement %s: %w", m.ID, err)
	}
	return nil
}

const measurementColumns = `measurement_id, heart_rate, timestamp_ns, source, provenance,
	session_id, samples, notes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeasurement(row rowScanner) (vitals.Measurement, error) {
	var (
		m         vitals.Measurement
		tsNanos   int64
		source    string
		prov      string
		sessionID sql.NullString
	)
	if err := row.Scan(&m.ID, &m.BPM, &tsNanos, &source, &prov, &sessionID, &m.Samples, &m.Notes); err != nil {
		return vitals.Measurement{}, err
	}
	m.Timestamp = time.Unix(0, tsNanos).UTC()
	m.Source = vitals.Source(source)
	m.Provenance = ppg.Provenance(prov)
	m.SessionID = sessionID.String
	return m, nil
}

// RecentMeasurements returns up to limit measurements, newest first. A
// limit <= 0 uses DefaultHistoryLimit; larger limits are capped at
// MaxHistoryLimit.
func (db *DB) RecentMeasurements(ctx context.Context, limit int) ([]vitals.Measurement, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	rows, err := db.QueryContext(ctx,
		`SELECT `+measurementColumns+` FROM measurements
		ORDER BY timestamp_ns DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []vitals.Measurement{}
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MeasurementByID returns the measurement with the given ID or ErrNotFound.
func (db *DB) MeasurementByID(ctx context.Context, id string) (vitals.Measurement, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+measurementColumns+` FROM measurements WHERE measurement_id = ?`, id)
	m, err := scanMeasurement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return vitals.Measurement{}, fmt.Errorf("measurement %s: %w", id, ErrNotFound)
	}
	return m, err
}
