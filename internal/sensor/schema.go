// Package sensor is the in-memory state store for the telemetry pipeline:
// enriched metric values, per-metric history, and per-metric alarm machines,
// grouped by (sensor type, instance). One writer goroutine applies updates;
// any number of readers query concurrently.
package sensor

import (
	"fmt"
	"strings"

	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/units"
)

// FieldSpec declares a metric field: its unit category, a display label,
// and the short mnemonic instrument pages show.
type FieldSpec struct {
	Category units.Category `json:"category"`
	Label    string         `json:"label"`
	Mnemonic string         `json:"mnemonic"`
}

// Schema maps field names to their specs for one sensor type.
type Schema map[string]FieldSpec

// typeLabels provide display names for instance zero; later instances get
// "#n" suffixes.
var typeLabels = map[models.SensorType]string{
	models.SensorDepth:       "Depth",
	models.SensorGPS:         "GPS",
	models.SensorSpeed:       "Speed",
	models.SensorCompass:     "Compass",
	models.SensorWind:        "Wind",
	models.SensorTemperature: "Temperature",
	models.SensorBattery:     "Battery",
	models.SensorEngine:      "Engine",
	models.SensorTank:        "Tank",
	models.SensorRudder:      "Rudder",
	models.SensorAutopilot:   "Autopilot",
	models.SensorNavigation:  "Navigation",
	models.SensorWeather:     "Weather",
}

// schemas is the full field catalog. A field must appear here before the
// cache stores it; unknown names are counted as schema mismatches and
// dropped.
var schemas = map[models.SensorType]Schema{
	models.SensorDepth: {
		"depth":  {units.Depth, "Depth", "DPT"},
		"offset": {units.Depth, "Transducer Offset", "OFS"},
	},
	models.SensorGPS: {
		"latitude":                      {units.Coordinate, "Latitude", "LAT"},
		"longitude":                     {units.Coordinate, "Longitude", "LON"},
		"altitude":                      {units.Distance, "Altitude", "ALT"},
		"speedOverGround":               {units.Speed, "Speed Over Ground", "SOG"},
		"courseOverGround":              {units.Angle, "Course Over Ground", "COG"},
		"numberOfSatellites":            {units.Count, "Satellites", "SATS"},
		"horizontalDilutionOfPrecision": {units.Dilution, "HDOP", "HDOP"},
		"fixQuality":                    {units.Count, "Fix Quality", "FIX"},
	},
	models.SensorSpeed: {
		"throughWater": {units.Speed, "Speed Through Water", "STW"},
		"overGround":   {units.Speed, "Speed Over Ground", "SOG"},
	},
	models.SensorCompass: {
		"heading":     {units.Angle, "Heading", "HDG"},
		"trueHeading": {units.Angle, "True Heading", "HDT"},
		"variation":   {units.Angle, "Variation", "VAR"},
		"deviation":   {units.Angle, "Deviation", "DEV"},
		"pitch":       {units.Angle, "Pitch", "PITCH"},
		"roll":        {units.Angle, "Roll", "ROLL"},
		"rateOfTurn":  {units.Angle, "Rate of Turn", "ROT"},
	},
	models.SensorWind: {
		"apparentSpeed":     {units.Speed, "Apparent Wind Speed", "AWS"},
		"apparentDirection": {units.Angle, "Apparent Wind Angle", "AWA"},
		"trueSpeed":         {units.Speed, "True Wind Speed", "TWS"},
		"trueDirection":     {units.Angle, "True Wind Direction", "TWD"},
	},
	models.SensorTemperature: {
		"value":    {units.Temperature, "Temperature", "TMP"},
		"location": {units.Text, "Location", "LOC"},
	},
	models.SensorBattery: {
		"voltage":       {units.Voltage, "Voltage", "VLT"},
		"current":       {units.Current, "Current", "AMP"},
		"temperature":   {units.Temperature, "Temperature", "TMP"},
		"stateOfCharge": {units.Percent, "State of Charge", "SOC"},
	},
	models.SensorEngine: {
		"rpm":               {units.RPM, "Engine RPM", "RPM"},
		"coolantTemp":       {units.Temperature, "Coolant Temperature", "ECT"},
		"oilPressure":       {units.Pressure, "Oil Pressure", "EOP"},
		"oilTemperature":    {units.Temperature, "Oil Temperature", "EOT"},
		"alternatorVoltage": {units.Voltage, "Alternator Voltage", "ALT"},
		"fuelRate":          {units.Flow, "Fuel Rate", "FLOW"},
		"hours":             {units.Hours, "Engine Hours", "EHR"},
		"boostPressure":     {units.Pressure, "Boost Pressure", "BST"},
		"engineLoad":        {units.Percent, "Engine Load", "LOAD"},
		"engineTorque":      {units.Percent, "Engine Torque", "TRQ"},
		"tiltTrim":          {units.Percent, "Tilt/Trim", "TRIM"},
	},
	models.SensorTank: {
		"level":     {units.Percent, "Level", "LVL"},
		"capacity":  {units.Volume, "Capacity", "CAP"},
		"remaining": {units.Volume, "Remaining", "REM"},
		"tankType":  {units.Text, "Tank Type", "TYPE"},
	},
	models.SensorRudder: {
		"angle":      {units.Angle, "Rudder Angle", "RUD"},
		"angleOrder": {units.Angle, "Rudder Order", "ORD"},
	},
	models.SensorAutopilot: {
		"mode":          {units.Text, "Mode", "MODE"},
		"state":         {units.Text, "State", "STATE"},
		"headingTarget": {units.Angle, "Heading Target", "TGT"},
		"pilotHeading":  {units.Angle, "Pilot Heading", "PHDG"},
	},
	models.SensorNavigation: {
		"crossTrackError":            {units.Distance, "Cross Track Error", "XTE"},
		"bearingToWaypoint":          {units.Angle, "Bearing to Waypoint", "BTW"},
		"distanceToWaypoint":         {units.Distance, "Distance to Waypoint", "DTW"},
		"bearingOriginToDestination": {units.Angle, "Bearing Origin to Dest", "BOD"},
		"waypointId":                 {units.Text, "Waypoint", "WPT"},
		"eta":                        {units.Text, "ETA", "ETA"},
		"closingVelocity":            {units.Speed, "Closing Velocity", "VMG"},
	},
	models.SensorWeather: {
		"airTemperature":     {units.Temperature, "Air Temperature", "ATMP"},
		"waterTemperature":   {units.Temperature, "Water Temperature", "WTMP"},
		"barometricPressure": {units.Barometric, "Barometric Pressure", "BARO"},
		"humidity":           {units.Percent, "Humidity", "HUM"},
	},
}

// Virtual metric suffixes resolve against history session stats rather than
// stored fields: "depth.max" is the session maximum of "depth".
const (
	virtualMin = ".min"
	virtualMax = ".max"
	virtualAvg = ".avg"
)

// SchemaFor returns the field catalog for a sensor type.
func SchemaFor(t models.SensorType) (Schema, bool) {
	s, ok := schemas[t]
	return s, ok
}

// Schemas returns the whole catalog keyed by sensor type.
func Schemas() map[models.SensorType]Schema {
	return schemas
}

// LookupField resolves a field name, stripping any virtual stat suffix
// first, so "depth.max" resolves to the field entry for "depth".
func LookupField(t models.SensorType, field string) (FieldSpec, bool) {
	base, _ := splitVirtual(field)
	s, ok := schemas[t]
	if !ok {
		return FieldSpec{}, false
	}
	spec, ok := s[base]
	return spec, ok
}

// splitVirtual separates "depth.max" into ("depth", ".max"). Fields without
// a recognized suffix return the empty suffix.
func splitVirtual(field string) (base, suffix string) {
	for _, s := range []string{virtualMin, virtualMax, virtualAvg} {
		if strings.HasSuffix(field, s) {
			return strings.TrimSuffix(field, s), s
		}
	}
	return field, ""
}

// displayName renders "Engine" for instance 0 and "Engine #2" beyond.
func displayName(t models.SensorType, instance int) string {
	label, ok := typeLabels[t]
	if !ok {
		label = string(t)
	}
	if instance == 0 {
		return label
	}
	return fmt.Sprintf("%s #%d", label, instance+1)
}
