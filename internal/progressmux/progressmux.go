// Package progressmux fans session progress and finished measurements out to
// live subscribers over Server-Sent Events and WebSockets. Publishing never
// blocks: a subscriber whose buffer is full misses the update.
package progressmux

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/banshee-data/pulse.report/internal/vitals"
)

// SubscriberBuffer is the per-subscriber channel capacity.
const SubscriberBuffer = 16

// EventType distinguishes progress ticks from finished measurements.
type EventType string

const (
	EventProgress    EventType = "progress"
	EventMeasurement EventType = "measurement"
)

// Event is one message delivered to subscribers.
type Event struct {
	Type        EventType           `json:"type"`
	SessionID   string              `json:"session_id,omitempty"`
	Progress    float64             `json:"progress"`
	Measurement *vitals.Measurement `json:"measurement,omitempty"`
	Time        time.Time           `json:"time"`
}

// Mux is a broadcast hub for session events.
type Mux struct {
	mu          sync.Mutex
	subscribers map[string]chan Event
	closed      bool
	dropped     uint64
	now         func() time.Time
}

// New returns an empty Mux.
func New() *Mux {
	return &Mux{
		subscribers: make(map[string]chan Event),
		now:         time.Now,
	}
}

// randomID generates a random subscriber ID (8 byte random hex encoded value).
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new subscriber. The channel is closed by Unsubscribe
// or Close.
func (m *Mux) Subscribe() (string, <-chan Event) {
	id := randomID()
	ch := make(chan Event, SubscriberBuffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		return id, ch
	}
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (m *Mux) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Subscribers returns the number of live subscribers.
func (m *Mux) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// Dropped returns how many deliveries were skipped because a subscriber was
// not keeping up.
func (m *Mux) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Publish delivers e to every subscriber without blocking.
func (m *Mux) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = m.now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- e:
		default:
			m.dropped++
		}
	}
}

// PublishProgress matches session.ProgressFunc.
func (m *Mux) PublishProgress(sessionID string, fraction float64) {
	m.Publish(Event{Type: EventProgress, SessionID: sessionID, Progress: fraction})
}

// Record implements vitals.Sink so finished measurements reach live viewers.
func (m *Mux) Record(_ context.Context, meas vitals.Measurement) error {
	m.Publish(Event{
		Type:        EventMeasurement,
		SessionID:   meas.SessionID,
		Progress:    1,
		Measurement: &meas,
	})
	return nil
}

// Close closes every subscriber channel. Later subscribers receive a closed
// channel.
func (m *Mux) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
}
