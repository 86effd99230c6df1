// Package detection maintains the set of instruments considered present on
// the vessel. A registration names the metric fields a widget needs; an
// instance is detected once every required field is fresh, and dropped only
// after staying stale through a grace period, so transient dropouts do not
// flicker the instrument list.
package detection

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/sensor"
)

const (
	defaultStaleAfter  = 10 * time.Second
	defaultRemoveGrace = 30 * time.Second
)

// Registration binds a widget name to the sensor fields it needs. Required
// fields gate detection; optional ones only enrich the projection.
type Registration struct {
	Widget      string
	Sensor      models.SensorType
	Required    []string
	Optional    []string
	StaleAfter  time.Duration
	RemoveGrace time.Duration
}

func (r *Registration) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Widget             string   `yaml:"widget"`
		Sensor             string   `yaml:"sensor"`
		Required           []string `yaml:"required"`
		Optional           []string `yaml:"optional"`
		StaleAfterSeconds  float64  `yaml:"stale_after_seconds"`
		RemoveGraceSeconds float64  `yaml:"remove_grace_seconds"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	r.Widget = raw.Widget
	r.Sensor = models.SensorType(raw.Sensor)
	r.Required = raw.Required
	r.Optional = raw.Optional
	r.StaleAfter = time.Duration(raw.StaleAfterSeconds * float64(time.Second))
	r.RemoveGrace = time.Duration(raw.RemoveGraceSeconds * float64(time.Second))
	return nil
}

// Validate checks the registration against the sensor schemas. Zero
// durations are filled with defaults first by the loaders, so a zero here
// is a caller mistake.
func (r Registration) Validate() error {
	if r.Widget == "" {
		return fmt.Errorf("detection: registration needs a widget name")
	}
	if _, ok := sensor.SchemaFor(r.Sensor); !ok {
		return fmt.Errorf("detection: widget %q: unknown sensor type %q", r.Widget, r.Sensor)
	}
	if len(r.Required) == 0 {
		return fmt.Errorf("detection: widget %q: needs at least one required field", r.Widget)
	}
	for _, field := range r.Required {
		if _, ok := sensor.LookupField(r.Sensor, field); !ok {
			return fmt.Errorf("detection: widget %q: sensor %s has no field %q", r.Widget, r.Sensor, field)
		}
	}
	for _, field := range r.Optional {
		if _, ok := sensor.LookupField(r.Sensor, field); !ok {
			return fmt.Errorf("detection: widget %q: sensor %s has no field %q", r.Widget, r.Sensor, field)
		}
	}
	if r.StaleAfter <= 0 {
		return fmt.Errorf("detection: widget %q: stale_after must be positive", r.Widget)
	}
	if r.RemoveGrace < 0 {
		return fmt.Errorf("detection: widget %q: remove_grace must not be negative", r.Widget)
	}
	return nil
}

// LoadFile reads registrations from a YAML equipment file:
//
//	registrations:
//	  - widget: depth
//	    sensor: depth
//	    required: [depth]
//	    stale_after_seconds: 10
//	    remove_grace_seconds: 30
func LoadFile(path string) ([]Registration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("detection: read equipment file: %w", err)
	}
	var doc struct {
		Registrations []Registration `yaml:"registrations"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("detection: parse equipment file: %w", err)
	}
	if len(doc.Registrations) == 0 {
		return nil, fmt.Errorf("detection: equipment file %s lists no registrations", path)
	}
	for i := range doc.Registrations {
		fillDefaults(&doc.Registrations[i])
		if err := doc.Registrations[i].Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Registrations, nil
}

func fillDefaults(r *Registration) {
	if r.StaleAfter == 0 {
		r.StaleAfter = defaultStaleAfter
	}
	if r.RemoveGrace == 0 {
		r.RemoveGrace = defaultRemoveGrace
	}
}

// DefaultRegistrations covers the standard instrument widgets. Slow senders
// (tanks, weather) get longer staleness windows than rapid navigation data.
func DefaultRegistrations() []Registration {
	regs := []Registration{
		{Widget: "depth", Sensor: models.SensorDepth, Required: []string{"depth"}, Optional: []string{"offset"}},
		{Widget: "gps", Sensor: models.SensorGPS, Required: []string{"latitude", "longitude"},
			Optional: []string{"speedOverGround", "courseOverGround", "numberOfSatellites", "fixQuality"}},
		{Widget: "speed", Sensor: models.SensorSpeed, Required: []string{"overGround"}, Optional: []string{"throughWater"}},
		{Widget: "compass", Sensor: models.SensorCompass, Required: []string{"heading"},
			Optional: []string{"trueHeading", "variation", "rateOfTurn", "pitch", "roll"}},
		{Widget: "wind", Sensor: models.SensorWind, Required: []string{"apparentSpeed", "apparentDirection"},
			Optional: []string{"trueSpeed", "trueDirection"}},
		{Widget: "temperature", Sensor: models.SensorTemperature, Required: []string{"value"},
			Optional: []string{"location"}, StaleAfter: time.Minute},
		{Widget: "battery", Sensor: models.SensorBattery, Required: []string{"voltage"},
			Optional: []string{"current", "stateOfCharge", "temperature"}, StaleAfter: 30 * time.Second},
		{Widget: "engine", Sensor: models.SensorEngine, Required: []string{"rpm"},
			Optional: []string{"coolantTemp", "oilPressure", "alternatorVoltage", "hours"}},
		{Widget: "tank", Sensor: models.SensorTank, Required: []string{"level"},
			Optional: []string{"capacity", "remaining", "tankType"}, StaleAfter: 5 * time.Minute},
		{Widget: "rudder", Sensor: models.SensorRudder, Required: []string{"angle"}},
		{Widget: "autopilot", Sensor: models.SensorAutopilot, Required: []string{"mode"},
			Optional: []string{"state", "headingTarget", "pilotHeading"}},
		{Widget: "navigation", Sensor: models.SensorNavigation, Required: []string{"distanceToWaypoint", "bearingToWaypoint"},
			Optional: []string{"crossTrackError", "eta", "waypointId", "closingVelocity"}},
		{Widget: "weather", Sensor: models.SensorWeather, Required: []string{"barometricPressure"},
			Optional: []string{"airTemperature", "waterTemperature", "humidity"}, StaleAfter: 2 * time.Minute},
	}
	for i := range regs {
		fillDefaults(&regs[i])
	}
	return regs
}
