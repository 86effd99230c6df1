// Package eventbus carries telemetry events and raw bus traffic over NATS.
// Subjects are fixed: raw NMEA arrives on nmea.raw.*, processed events leave
// on telemetry.event.*.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/pliefoog/helmwatch/internal/models"
)

const (
	SubjectRaw0183          = "nmea.raw.0183"
	SubjectRaw2000          = "nmea.raw.2000"
	SubjectInstanceDetected = "telemetry.event.instance.detected"
	SubjectInstanceLost     = "telemetry.event.instance.lost"
	SubjectAlarm            = "telemetry.event.alarm"
)

// Publisher fans pipeline events out to NATS subscribers.
type Publisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

func NewPublisher(natsURL string, logger zerolog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect %s: %w", natsURL, err)
	}

	logger = logger.With().Str("component", "eventbus").Logger()
	logger.Info().Str("url", natsURL).Msg("Publisher connected to NATS")

	return &Publisher{conn: conn, logger: logger}, nil
}

// PublishEvent routes one event to the subject for its kind.
func (p *Publisher) PublishEvent(ev models.Event) error {
	subject, err := subjectFor(ev.EventKind())
	if err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventbus: marshal %s: %w", ev.EventKind(), err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("eventbus: publish %s: %w", subject, err)
	}
	p.logger.Debug().Str("subject", subject).Msg("Published event")
	return nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		p.logger.Info().Msg("Publisher disconnected from NATS")
	}
}

func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

func subjectFor(kind string) (string, error) {
	switch kind {
	case models.EventInstanceDetected:
		return SubjectInstanceDetected, nil
	case models.EventInstanceLost:
		return SubjectInstanceLost, nil
	case models.EventAlarmChanged:
		return SubjectAlarm, nil
	}
	return "", fmt.Errorf("eventbus: no subject for event kind %q", kind)
}
