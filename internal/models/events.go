package models

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds carried on the telemetry event stream.
const (
	EventInstanceDetected = "instance.detected"
	EventInstanceLost     = "instance.lost"
	EventAlarmChanged     = "alarm.changed"
)

// InstanceEvent reports an instrument appearing on, or dropping off, the
// detected set maintained by the detection service.
type InstanceEvent struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"` // instance.detected | instance.lost
	Widget      string     `json:"widget"`
	Sensor      SensorType `json:"sensor_type"`
	Instance    int        `json:"instance"`
	DisplayName string     `json:"display_name"`
	Timestamp   int64      `json:"timestamp"`
}

func NewInstanceEvent(kind, widget string, sensor SensorType, instance int, name string, ts time.Time) InstanceEvent {
	return InstanceEvent{
		ID:          uuid.NewString(),
		Kind:        kind,
		Widget:      widget,
		Sensor:      sensor,
		Instance:    instance,
		DisplayName: name,
		Timestamp:   ts.UnixNano(),
	}
}

// AlarmEvent reports a state transition for one metric field. SoundPattern
// names the notification cadence configured for the severity entered; empty
// when the transition lowers severity.
type AlarmEvent struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"` // always alarm.changed
	Sensor       SensorType `json:"sensor_type"`
	Instance     int        `json:"instance"`
	Field        string     `json:"field"`
	Previous     AlarmState `json:"previous"`
	Current      AlarmState `json:"current"`
	Value        *float64   `json:"value,omitempty"`
	Threshold    *float64   `json:"threshold,omitempty"`
	SoundPattern string     `json:"sound_pattern,omitempty"`
	Timestamp    int64      `json:"timestamp"`
}

func NewAlarmEvent(sensor SensorType, instance int, field string, prev, cur AlarmState, ts time.Time) AlarmEvent {
	return AlarmEvent{
		ID:        uuid.NewString(),
		Kind:      EventAlarmChanged,
		Sensor:    sensor,
		Instance:  instance,
		Field:     field,
		Previous:  prev,
		Current:   cur,
		Timestamp: ts.UnixNano(),
	}
}

// Event is implemented by everything the pipeline can emit.
type Event interface {
	EventKind() string
}

func (e InstanceEvent) EventKind() string { return e.Kind }
func (e AlarmEvent) EventKind() string    { return e.Kind }
