package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/pliefoog/helmwatch/internal/alarm"
	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/units"
)

const (
	SubjectUnits      = "telemetry.settings.units"
	SubjectThresholds = "telemetry.settings.thresholds"
)

// Target applies validated setting changes to the running system. The
// pipeline implements it; changes ride its apply goroutine so cache
// mutation stays single-writer.
type Target interface {
	SetUnit(cat units.Category, unit string) error
	SetDefaultThresholds(t models.SensorType, field string, th alarm.Thresholds) error
}

// UnitChange is the wire form on telemetry.settings.units.
type UnitChange struct {
	Category string `json:"category"`
	Unit     string `json:"unit"`
}

// ThresholdChange is the wire form on telemetry.settings.thresholds. The
// change is type-wide: every instance still on the previous default picks
// it up.
type ThresholdChange struct {
	Sensor     models.SensorType `json:"sensor_type"`
	Field      string            `json:"field"`
	Thresholds alarm.Thresholds  `json:"thresholds"`
}

type ackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Listener subscribes to the settings subjects, applies each change to the
// target, and persists accepted changes through the store. A nil store
// applies without persisting.
type Listener struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	target Target
	store  *Store
	logger zerolog.Logger
}

func NewListener(natsURL string, target Target, store *Store, logger zerolog.Logger) (*Listener, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("settings: connect %s: %w", natsURL, err)
	}

	logger = logger.With().Str("component", "settings").Logger()
	logger.Info().Str("url", natsURL).Msg("Settings listener connected to NATS")

	return &Listener{conn: conn, target: target, store: store, logger: logger}, nil
}

// Start subscribes both settings subjects.
func (l *Listener) Start() error {
	unitSub, err := l.conn.Subscribe(SubjectUnits, func(msg *nats.Msg) {
		l.acknowledge(msg, l.ApplyUnitChange(msg.Data))
	})
	if err != nil {
		return fmt.Errorf("settings: subscribe %s: %w", SubjectUnits, err)
	}
	l.subs = append(l.subs, unitSub)

	thSub, err := l.conn.Subscribe(SubjectThresholds, func(msg *nats.Msg) {
		l.acknowledge(msg, l.ApplyThresholdChange(msg.Data))
	})
	if err != nil {
		return fmt.Errorf("settings: subscribe %s: %w", SubjectThresholds, err)
	}
	l.subs = append(l.subs, thSub)

	l.logger.Info().Msg("Listening for settings changes")
	return nil
}

// acknowledge replies when the sender asked for one; fire-and-forget
// publishes only get the log line.
func (l *Listener) acknowledge(msg *nats.Msg, err error) {
	if err != nil {
		l.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("Rejected settings change")
	}
	if msg.Reply == "" {
		return
	}
	ack := ackResponse{OK: err == nil}
	if err != nil {
		ack.Error = err.Error()
	}
	data, _ := json.Marshal(ack)
	if err := msg.Respond(data); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to acknowledge settings change")
	}
}

// ApplyUnitChange validates and applies one unit-preference change, then
// persists it. Configuration problems (unknown category or unit) come back
// as errors for the sender.
func (l *Listener) ApplyUnitChange(data []byte) error {
	var change UnitChange
	if err := json.Unmarshal(data, &change); err != nil {
		return fmt.Errorf("settings: bad unit change: %w", err)
	}
	cat := units.Category(change.Category)
	if err := l.target.SetUnit(cat, change.Unit); err != nil {
		return err
	}
	l.logger.Info().Str("category", change.Category).Str("unit", change.Unit).Msg("Switched display unit")

	if l.store != nil {
		if err := l.store.SaveUnit(context.Background(), cat, change.Unit); err != nil {
			l.logger.Warn().Err(err).Msg("Unit change applied but not persisted")
		}
	}
	return nil
}

// ApplyThresholdChange validates and applies one type-wide threshold change,
// then persists it.
func (l *Listener) ApplyThresholdChange(data []byte) error {
	var change ThresholdChange
	if err := json.Unmarshal(data, &change); err != nil {
		return fmt.Errorf("settings: bad threshold change: %w", err)
	}
	if err := l.target.SetDefaultThresholds(change.Sensor, change.Field, change.Thresholds); err != nil {
		return err
	}
	l.logger.Info().
		Str("sensor_type", string(change.Sensor)).
		Str("field", change.Field).
		Msg("Updated alarm thresholds")

	if l.store != nil {
		if err := l.store.SaveThresholds(context.Background(), change.Sensor, change.Field, change.Thresholds); err != nil {
			l.logger.Warn().Err(err).Msg("Threshold change applied but not persisted")
		}
	}
	return nil
}

func (l *Listener) Close() {
	for _, sub := range l.subs {
		sub.Unsubscribe()
	}
	if l.conn != nil {
		l.conn.Close()
		l.logger.Info().Msg("Settings listener disconnected from NATS")
	}
}

func (l *Listener) IsConnected() bool {
	return l.conn != nil && l.conn.IsConnected()
}

// ApplyPreferences pushes persisted preferences into the target at startup.
// A stale entry, say a threshold for a field the schema no longer lists,
// is logged and skipped so it cannot block the rest.
func ApplyPreferences(prefs Preferences, target Target, logger zerolog.Logger) {
	for cat, unit := range prefs.Units {
		if err := target.SetUnit(cat, unit); err != nil {
			logger.Warn().Err(err).Str("category", string(cat)).Msg("Skipping persisted unit preference")
		}
	}
	for _, o := range prefs.Thresholds {
		if err := target.SetDefaultThresholds(o.Sensor, o.Field, o.Thresholds); err != nil {
			logger.Warn().Err(err).
				Str("sensor_type", string(o.Sensor)).
				Str("field", o.Field).
				Msg("Skipping persisted thresholds")
		}
	}
}
