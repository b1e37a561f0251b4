// Package publish forwards finished measurements to a NATS subject so other
// services can follow heart-rate readings as they are produced.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/vitals"
)

// DefaultSubject is where measurements are published.
const DefaultSubject = "vitals.heart_rate"

var logf = monitoring.Component("publish")

// Connect dials NATS with reconnects enabled for the life of the process.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(
		url,
		nats.Name("pulse.report"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logf("disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logf("reconnected to %s", nc.ConnectedUrl())
		}),
	)
}

// Message is the JSON payload published for each measurement.
type Message struct {
	Subject    string `json:"subject"`
	Ts         int64  `json:"ts"`
	HR         int    `json:"hr"`
	ID         string `json:"id"`
	Source     string `json:"source"`
	Provenance string `json:"provenance"`
	SessionID  string `json:"session_id,omitempty"`
}

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// Publisher is a vitals.Sink that publishes each measurement as JSON.
type Publisher struct {
	conn    Conn
	subject string
}

// NewPublisher returns a publisher on subject, or DefaultSubject if empty.
func NewPublisher(conn Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

// NewMessage builds the payload for m.
func NewMessage(subject string, m vitals.Measurement) Message {
	return Message{
		Subject:    subject,
		Ts:         m.Timestamp.UnixMilli(),
		HR:         m.BPM,
		ID:         m.ID,
		Source:     string(m.Source),
		Provenance: string(m.Provenance),
		SessionID:  m.SessionID,
	}
}

// Record implements vitals.Sink. It waits for the server to acknowledge the
// flush or for ctx to expire.
func (p *Publisher) Record(ctx context.Context, m vitals.Measurement) error {
	b, err := json.Marshal(NewMessage(p.subject, m))
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, b); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", p.subject, err)
	}
	return nil
}
