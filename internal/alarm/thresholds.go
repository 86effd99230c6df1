// Package alarm evaluates metric values against configurable thresholds
// with hysteresis and staleness tracking. Each watched metric field owns a
// Machine; the Evaluator sweeps all machines on a fixed tick and reports
// state transitions.
package alarm

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pliefoog/helmwatch/internal/models"
)

// Thresholds configures alarming for one metric field. Bounds are SI values;
// nil bounds are not checked. Hysteresis widens the de-escalation band so a
// value hovering at a bound cannot flap the state.
type Thresholds struct {
	CriticalLow   *float64      `json:"critical_low,omitempty"`
	WarningLow    *float64      `json:"warning_low,omitempty"`
	WarningHigh   *float64      `json:"warning_high,omitempty"`
	CriticalHigh  *float64      `json:"critical_high,omitempty"`
	Hysteresis    float64       `json:"hysteresis"`
	StaleAfter    time.Duration `json:"-"`
	WarningSound  string        `json:"warning_sound,omitempty"`
	CriticalSound string        `json:"critical_sound,omitempty"`
	Enabled       bool          `json:"enabled"`
}

// Validate rejects configurations that could never evaluate sensibly:
// negative hysteresis, inverted bounds, or warning bounds outside their
// critical counterparts.
func (t Thresholds) Validate() error {
	if t.Hysteresis < 0 {
		return fmt.Errorf("alarm: hysteresis must not be negative, got %v", t.Hysteresis)
	}
	if t.StaleAfter < 0 {
		return fmt.Errorf("alarm: stale_after must not be negative, got %v", t.StaleAfter)
	}
	if t.CriticalLow != nil && t.CriticalHigh != nil && *t.CriticalLow >= *t.CriticalHigh {
		return fmt.Errorf("alarm: critical_low %v must be below critical_high %v", *t.CriticalLow, *t.CriticalHigh)
	}
	if t.WarningLow != nil && t.WarningHigh != nil && *t.WarningLow >= *t.WarningHigh {
		return fmt.Errorf("alarm: warning_low %v must be below warning_high %v", *t.WarningLow, *t.WarningHigh)
	}
	if t.CriticalLow != nil && t.WarningLow != nil && *t.WarningLow < *t.CriticalLow {
		return fmt.Errorf("alarm: warning_low %v must not be below critical_low %v", *t.WarningLow, *t.CriticalLow)
	}
	if t.CriticalHigh != nil && t.WarningHigh != nil && *t.WarningHigh > *t.CriticalHigh {
		return fmt.Errorf("alarm: warning_high %v must not be above critical_high %v", *t.WarningHigh, *t.CriticalHigh)
	}
	return nil
}

// MarshalJSON renders StaleAfter as seconds so settings payloads stay
// readable rather than nanosecond counts.
func (t Thresholds) MarshalJSON() ([]byte, error) {
	type alias Thresholds
	return json.Marshal(struct {
		alias
		StaleAfter float64 `json:"stale_after_seconds"`
	}{alias: alias(t), StaleAfter: t.StaleAfter.Seconds()})
}

func (t *Thresholds) UnmarshalJSON(data []byte) error {
	type alias Thresholds
	aux := struct {
		*alias
		StaleAfter float64 `json:"stale_after_seconds"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.StaleAfter = time.Duration(aux.StaleAfter * float64(time.Second))
	return nil
}

func ptr(v float64) *float64 { return &v }

// Defaults returns the built-in threshold set applied to new instances:
// shallow water, battery voltage bands for a 12 V system, engine coolant
// and oil pressure limits, low fuel and strong apparent wind.
func Defaults() map[models.SensorType]map[string]Thresholds {
	return map[models.SensorType]map[string]Thresholds{
		models.SensorDepth: {
			"depth": {
				CriticalLow:   ptr(2.0),
				WarningLow:    ptr(5.0),
				Hysteresis:    0.5,
				StaleAfter:    10 * time.Second,
				WarningSound:  "chime",
				CriticalSound: "klaxon",
				Enabled:       true,
			},
		},
		models.SensorBattery: {
			"voltage": {
				CriticalLow:   ptr(11.5),
				WarningLow:    ptr(12.0),
				WarningHigh:   ptr(14.8),
				CriticalHigh:  ptr(15.2),
				Hysteresis:    0.15,
				StaleAfter:    30 * time.Second,
				WarningSound:  "chime",
				CriticalSound: "klaxon",
				Enabled:       true,
			},
			"stateOfCharge": {
				CriticalLow:  ptr(20.0),
				WarningLow:   ptr(40.0),
				Hysteresis:   2.0,
				StaleAfter:   60 * time.Second,
				WarningSound: "chime",
				Enabled:      true,
			},
		},
		models.SensorEngine: {
			"coolantTemp": {
				WarningHigh:   ptr(95.0),
				CriticalHigh:  ptr(105.0),
				Hysteresis:    2.0,
				StaleAfter:    10 * time.Second,
				WarningSound:  "chime",
				CriticalSound: "klaxon",
				Enabled:       true,
			},
			"oilPressure": {
				CriticalLow:   ptr(100000.0), // 1 bar
				WarningLow:    ptr(150000.0),
				Hysteresis:    10000.0,
				StaleAfter:    10 * time.Second,
				WarningSound:  "chime",
				CriticalSound: "klaxon",
				Enabled:       true,
			},
		},
		models.SensorTank: {
			"level": {
				CriticalLow:  ptr(10.0),
				WarningLow:   ptr(20.0),
				Hysteresis:   2.0,
				StaleAfter:   5 * time.Minute,
				WarningSound: "chime",
				Enabled:      true,
			},
		},
		models.SensorWind: {
			"apparentSpeed": {
				WarningHigh:   ptr(12.86), // 25 kn
				CriticalHigh:  ptr(17.49), // 34 kn
				Hysteresis:    1.0,
				StaleAfter:    15 * time.Second,
				WarningSound:  "chime",
				CriticalSound: "klaxon",
				Enabled:       true,
			},
		},
	}
}
