package vitals

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/pulse.report/internal/monitoring"
)

// Sink receives finished measurements.
type Sink interface {
	Record(ctx context.Context, m Measurement) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, m Measurement) error

// Record implements Sink.
func (f SinkFunc) Record(ctx context.Context, m Measurement) error { return f(ctx, m) }

// Discard drops every measurement.
var Discard Sink = SinkFunc(func(context.Context, Measurement) error { return nil })

type namedSink struct {
	name string
	sink Sink
}

// MultiSink hands each measurement to every registered sink in order. One
// failing sink does not stop the others; their errors are joined.
type MultiSink struct {
	mu    sync.RWMutex
	sinks []namedSink
}

// NewMultiSink returns an empty fan-out sink.
func NewMultiSink() *MultiSink { return &MultiSink{} }

// Add registers sink under name. The name labels failure metrics and logs.
func (m *MultiSink) Add(name string, sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, namedSink{name: name, sink: sink})
}

// Len returns the number of registered sinks.
func (m *MultiSink) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sinks)
}

// Record implements Sink.
func (m *MultiSink) Record(ctx context.Context, meas Measurement) error {
	m.mu.RLock()
	sinks := append([]namedSink(nil), m.sinks...)
	m.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := s.sink.Record(ctx, meas); err != nil {
			monitoring.SinkFailures.WithLabelValues(s.name).Inc()
			monitoring.Logf("[vitals] sink %s failed for %s: %v", s.name, meas.ID, err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
