// Package models holds the value types shared across the telemetry pipeline:
// sensor updates produced by the mapper, alarm states, and the events the
// pipeline emits to consumers.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SensorType identifies a class of onboard instrument.
type SensorType string

const (
	SensorDepth       SensorType = "depth"
	SensorGPS         SensorType = "gps"
	SensorSpeed       SensorType = "speed"
	SensorCompass     SensorType = "compass"
	SensorWind        SensorType = "wind"
	SensorTemperature SensorType = "temperature"
	SensorBattery     SensorType = "battery"
	SensorEngine      SensorType = "engine"
	SensorTank        SensorType = "tank"
	SensorRudder      SensorType = "rudder"
	SensorAutopilot   SensorType = "autopilot"
	SensorNavigation  SensorType = "navigation"
	SensorWeather     SensorType = "weather"
)

// Reading is a single decoded field value in SI units: either numeric or
// text, never both. Decoders produce readings; the cache stores them as the
// source of truth that display conversion derives from.
type Reading struct {
	num     float64
	text    string
	textual bool
}

// Num builds a numeric reading.
func Num(v float64) Reading {
	return Reading{num: v}
}

// Text builds a textual reading (waypoint IDs, mode strings, tank types).
func Text(s string) Reading {
	return Reading{text: s, textual: true}
}

func (r Reading) Float() float64 { return r.num }
func (r Reading) Text() string   { return r.text }
func (r Reading) IsText() bool   { return r.textual }

func (r Reading) String() string {
	if r.textual {
		return r.text
	}
	return fmt.Sprintf("%g", r.num)
}

// MarshalJSON encodes numeric readings as JSON numbers and textual readings
// as JSON strings, so query responses stay natural to consume.
func (r Reading) MarshalJSON() ([]byte, error) {
	if r.textual {
		return json.Marshal(r.text)
	}
	return json.Marshal(r.num)
}

func (r *Reading) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*r = Num(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("models: reading is neither number nor string: %w", err)
	}
	*r = Text(s)
	return nil
}

// SensorUpdate is one normalized measurement batch headed for the cache.
// Produced by the mapper, consumed exactly once by Cache.Apply, never stored.
type SensorUpdate struct {
	Type      SensorType         `json:"sensor_type"`
	Instance  int                `json:"instance"`
	Fields    map[string]Reading `json:"fields"`
	Timestamp time.Time          `json:"timestamp"`
}

// InstanceKey returns the canonical "(type, instance)" identity string used
// for log lines and bus subjects.
func (u SensorUpdate) InstanceKey() string {
	return fmt.Sprintf("%s/%d", u.Type, u.Instance)
}
