// Package mapper fans decoded protocol messages out into sensor updates
// keyed by (sensor type, instance). Instance identity comes from the talker
// prefix on NMEA 0183 traffic, from the instance byte on PGNs that carry
// one, and otherwise from the transmitting source address. Each distinct
// origin is handed the next free instance number for its sensor type, so a
// single-source installation always resolves to instance zero.
package mapper

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/nmea0183"
	"github.com/pliefoog/helmwatch/internal/nmea2000"
)

// Mapper allocates instance numbers and translates messages. Safe for
// concurrent use; allocation state is the only thing it guards.
type Mapper struct {
	mu      sync.Mutex
	origins map[originKey]int
	next    map[models.SensorType]int
}

type originKey struct {
	sensor models.SensorType
	origin string
}

func New() *Mapper {
	return &Mapper{
		origins: make(map[originKey]int),
		next:    make(map[models.SensorType]int),
	}
}

// instanceFor hands out instance numbers per sensor type in first-seen
// origin order.
func (m *Mapper) instanceFor(t models.SensorType, origin string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := originKey{t, origin}
	if n, ok := m.origins[key]; ok {
		return n
	}
	n := m.next[t]
	m.next[t] = n + 1
	m.origins[key] = n
	return n
}

// MapSentence converts a decoded sentence into zero or more sensor updates.
// Sentences spanning several logical sensors produce one update per sensor
// type, all sharing the talker's instance resolution and the same timestamp.
func (m *Mapper) MapSentence(msg nmea0183.Message, ts time.Time) []models.SensorUpdate {
	if msg == nil {
		return nil
	}
	b := &batch{ts: ts}

	switch v := msg.(type) {
	case nmea0183.DBT:
		b.sensor(models.SensorDepth, m.instanceFor(models.SensorDepth, v.Talker)).
			num("depth", v.Depth)

	case nmea0183.DPT:
		f := b.sensor(models.SensorDepth, m.instanceFor(models.SensorDepth, v.Talker))
		f.num("depth", v.Depth)
		f.num("offset", v.Offset)

	case nmea0183.GGA:
		f := b.sensor(models.SensorGPS, m.instanceFor(models.SensorGPS, v.Talker))
		f.num("latitude", v.Latitude)
		f.num("longitude", v.Longitude)
		f.num("altitude", v.Altitude)
		f.num("numberOfSatellites", v.Satellites)
		f.num("horizontalDilutionOfPrecision", v.HDOP)
		f.num("fixQuality", v.FixQuality)

	case nmea0183.GLL:
		if !v.Valid {
			return nil
		}
		f := b.sensor(models.SensorGPS, m.instanceFor(models.SensorGPS, v.Talker))
		f.num("latitude", v.Latitude)
		f.num("longitude", v.Longitude)

	case nmea0183.RMC:
		if !v.Valid {
			return nil
		}
		gps := b.sensor(models.SensorGPS, m.instanceFor(models.SensorGPS, v.Talker))
		gps.num("latitude", v.Latitude)
		gps.num("longitude", v.Longitude)
		gps.num("speedOverGround", v.SpeedOverGround)
		gps.num("courseOverGround", v.CourseOverGround)
		b.sensor(models.SensorSpeed, m.instanceFor(models.SensorSpeed, v.Talker)).
			num("overGround", v.SpeedOverGround)
		b.sensor(models.SensorCompass, m.instanceFor(models.SensorCompass, v.Talker)).
			num("variation", v.Variation)

	case nmea0183.VTG:
		gps := b.sensor(models.SensorGPS, m.instanceFor(models.SensorGPS, v.Talker))
		gps.num("courseOverGround", v.CourseTrue)
		gps.num("speedOverGround", v.SpeedOverGround)
		b.sensor(models.SensorSpeed, m.instanceFor(models.SensorSpeed, v.Talker)).
			num("overGround", v.SpeedOverGround)

	case nmea0183.HDG:
		f := b.sensor(models.SensorCompass, m.instanceFor(models.SensorCompass, v.Talker))
		f.num("heading", v.Heading)
		f.num("deviation", v.Deviation)
		f.num("variation", v.Variation)
		// True heading is synthesized when the sentence carries enough to
		// correct the magnetic sensor reading.
		if v.Heading != nil && v.Variation != nil {
			corrected := *v.Heading + *v.Variation
			if v.Deviation != nil {
				corrected += *v.Deviation
			}
			corrected = normalizeAngle(corrected)
			f.num("trueHeading", &corrected)
		}

	case nmea0183.HDM:
		b.sensor(models.SensorCompass, m.instanceFor(models.SensorCompass, v.Talker)).
			num("heading", v.Heading)

	case nmea0183.HDT:
		b.sensor(models.SensorCompass, m.instanceFor(models.SensorCompass, v.Talker)).
			num("trueHeading", v.Heading)

	case nmea0183.MWV:
		if !v.Valid {
			return nil
		}
		f := b.sensor(models.SensorWind, m.instanceFor(models.SensorWind, v.Talker))
		if v.Reference == "T" {
			f.num("trueSpeed", v.Speed)
			f.num("trueDirection", v.Angle)
		} else {
			f.num("apparentSpeed", v.Speed)
			f.num("apparentDirection", v.Angle)
		}

	case nmea0183.MTW:
		b.sensor(models.SensorWeather, m.instanceFor(models.SensorWeather, v.Talker)).
			num("waterTemperature", v.Temperature)
		f := b.sensor(models.SensorTemperature, m.instanceFor(models.SensorTemperature, v.Talker))
		f.num("value", v.Temperature)
		if v.Temperature != nil {
			f.text("location", "water")
		}

	case nmea0183.VHW:
		f := b.sensor(models.SensorCompass, m.instanceFor(models.SensorCompass, v.Talker))
		f.num("trueHeading", v.HeadingTrue)
		f.num("heading", v.HeadingMagnetic)
		b.sensor(models.SensorSpeed, m.instanceFor(models.SensorSpeed, v.Talker)).
			num("throughWater", v.SpeedThroughWater)

	case nmea0183.ROT:
		if !v.Valid {
			return nil
		}
		b.sensor(models.SensorCompass, m.instanceFor(models.SensorCompass, v.Talker)).
			num("rateOfTurn", v.Rate)

	case nmea0183.RSA:
		b.sensor(models.SensorRudder, m.instanceFor(models.SensorRudder, v.Talker)).
			num("angle", v.Starboard)
		if v.Port != nil {
			b.sensor(models.SensorRudder, m.instanceFor(models.SensorRudder, v.Talker+":port")).
				num("angle", v.Port)
		}

	case nmea0183.XDR:
		m.mapTransducers(b, v)
	}

	return b.done()
}

// mapTransducers routes XDR quadruplets by transducer type letter. Named
// transducers get their own origin so two voltage senders on one talker
// stay distinct instances.
func (m *Mapper) mapTransducers(b *batch, v nmea0183.XDR) {
	for _, meas := range v.Measurements {
		origin := v.Talker
		if meas.Name != "" {
			origin = v.Talker + ":" + meas.Name
		}
		val := meas.Value
		name := strings.ToUpper(meas.Name)

		switch meas.Type {
		case "C":
			switch {
			case strings.Contains(name, "WATER"):
				b.sensor(models.SensorWeather, m.instanceFor(models.SensorWeather, v.Talker)).
					num("waterTemperature", &val)
			case strings.Contains(name, "AIR"), strings.Contains(name, "OUT"):
				b.sensor(models.SensorWeather, m.instanceFor(models.SensorWeather, v.Talker)).
					num("airTemperature", &val)
			default:
				f := b.sensor(models.SensorTemperature, m.instanceFor(models.SensorTemperature, origin))
				f.num("value", &val)
				f.text("location", meas.Name)
			}
		case "P":
			b.sensor(models.SensorWeather, m.instanceFor(models.SensorWeather, v.Talker)).
				num("barometricPressure", &val)
		case "H":
			b.sensor(models.SensorWeather, m.instanceFor(models.SensorWeather, v.Talker)).
				num("humidity", &val)
		case "U":
			b.sensor(models.SensorBattery, m.instanceFor(models.SensorBattery, origin)).
				num("voltage", &val)
		case "T":
			b.sensor(models.SensorEngine, m.instanceFor(models.SensorEngine, origin)).
				num("rpm", &val)
		case "A":
			f := b.sensor(models.SensorCompass, m.instanceFor(models.SensorCompass, v.Talker))
			switch {
			case strings.Contains(name, "PTCH"), strings.Contains(name, "PITCH"):
				f.num("pitch", &val)
			case strings.Contains(name, "ROLL"):
				f.num("roll", &val)
			}
		}
	}
}

// MapPGN converts a decoded PGN into zero or more sensor updates. PGNs with
// an instance byte use it directly; the rest resolve through the source
// address.
func (m *Mapper) MapPGN(source uint8, msg nmea2000.Message, ts time.Time) []models.SensorUpdate {
	if msg == nil {
		return nil
	}
	b := &batch{ts: ts}
	src := "src:" + strconv.Itoa(int(source))

	switch v := msg.(type) {
	case nmea2000.BatteryStatus:
		f := b.sensor(models.SensorBattery, int(v.Instance))
		f.num("voltage", v.Voltage)
		f.num("current", v.Current)
		f.num("temperature", v.Temperature)

	case nmea2000.DCStatus:
		b.sensor(models.SensorBattery, int(v.Instance)).
			num("stateOfCharge", v.StateOfCharge)

	case nmea2000.WaterDepth:
		f := b.sensor(models.SensorDepth, m.instanceFor(models.SensorDepth, src))
		f.num("depth", v.Depth)
		f.num("offset", v.Offset)

	case nmea2000.Speed:
		f := b.sensor(models.SensorSpeed, m.instanceFor(models.SensorSpeed, src))
		f.num("throughWater", v.SpeedThroughWater)
		f.num("overGround", v.SpeedOverGround)

	case nmea2000.PositionRapid:
		f := b.sensor(models.SensorGPS, m.instanceFor(models.SensorGPS, src))
		f.num("latitude", v.Latitude)
		f.num("longitude", v.Longitude)

	case nmea2000.CogSog:
		gps := b.sensor(models.SensorGPS, m.instanceFor(models.SensorGPS, src))
		gps.num("courseOverGround", v.CourseOverGround)
		gps.num("speedOverGround", v.SpeedOverGround)
		b.sensor(models.SensorSpeed, m.instanceFor(models.SensorSpeed, src)).
			num("overGround", v.SpeedOverGround)

	case nmea2000.GNSSPosition:
		f := b.sensor(models.SensorGPS, m.instanceFor(models.SensorGPS, src))
		f.num("latitude", v.Latitude)
		f.num("longitude", v.Longitude)
		f.num("altitude", v.Altitude)
		f.num("numberOfSatellites", v.Satellites)
		f.num("horizontalDilutionOfPrecision", v.HDOP)
		quality := float64(v.Method)
		f.num("fixQuality", &quality)

	case nmea2000.VesselHeading:
		f := b.sensor(models.SensorCompass, m.instanceFor(models.SensorCompass, src))
		if v.Reference == 0 {
			f.num("trueHeading", v.Heading)
		} else {
			f.num("heading", v.Heading)
		}
		f.num("deviation", v.Deviation)
		f.num("variation", v.Variation)

	case nmea2000.RateOfTurn:
		b.sensor(models.SensorCompass, m.instanceFor(models.SensorCompass, src)).
			num("rateOfTurn", v.Rate)

	case nmea2000.Attitude:
		f := b.sensor(models.SensorCompass, m.instanceFor(models.SensorCompass, src))
		f.num("pitch", v.Pitch)
		f.num("roll", v.Roll)

	case nmea2000.EngineRapid:
		f := b.sensor(models.SensorEngine, int(v.Instance))
		f.num("rpm", v.Speed)
		f.num("boostPressure", v.BoostPressure)
		f.num("tiltTrim", v.TiltTrim)

	case nmea2000.EngineDynamic:
		f := b.sensor(models.SensorEngine, int(v.Instance))
		f.num("oilPressure", v.OilPressure)
		f.num("oilTemperature", v.OilTemperature)
		f.num("coolantTemp", v.CoolantTemperature)
		f.num("alternatorVoltage", v.AlternatorVoltage)
		f.num("fuelRate", v.FuelRate)
		f.num("hours", v.TotalHours)
		f.num("engineLoad", v.Load)
		f.num("engineTorque", v.Torque)

	case nmea2000.FluidLevel:
		f := b.sensor(models.SensorTank, int(v.Instance))
		f.num("level", v.Level)
		f.num("capacity", v.Capacity)
		if v.Level != nil && v.Capacity != nil {
			remaining := *v.Level / 100 * *v.Capacity
			f.num("remaining", &remaining)
		}
		f.text("tankType", tankTypeName(v.Type))

	case nmea2000.Rudder:
		f := b.sensor(models.SensorRudder, int(v.Instance))
		f.num("angle", v.Position)
		f.num("angleOrder", v.AngleOrder)

	case nmea2000.WindData:
		f := b.sensor(models.SensorWind, m.instanceFor(models.SensorWind, src))
		if v.Reference == 2 {
			f.num("apparentSpeed", v.Speed)
			f.num("apparentDirection", v.Angle)
		} else {
			f.num("trueSpeed", v.Speed)
			f.num("trueDirection", v.Angle)
		}

	case nmea2000.Environment:
		f := b.sensor(models.SensorWeather, m.instanceFor(models.SensorWeather, src))
		f.num("waterTemperature", v.WaterTemperature)
		f.num("airTemperature", v.AirTemperature)
		f.num("barometricPressure", v.AtmosphericPressure)

	case nmea2000.Environment2:
		f := b.sensor(models.SensorWeather, m.instanceFor(models.SensorWeather, src))
		f.num("humidity", v.Humidity)
		f.num("barometricPressure", v.AtmosphericPressure)
		switch v.TemperatureSource {
		case 0:
			f.num("waterTemperature", v.Temperature)
		case 1:
			f.num("airTemperature", v.Temperature)
		default:
			tf := b.sensor(models.SensorTemperature, m.instanceFor(models.SensorTemperature, src))
			tf.num("value", v.Temperature)
			if v.Temperature != nil {
				tf.text("location", temperatureSourceName(v.TemperatureSource))
			}
		}

	case nmea2000.Temperature:
		f := b.sensor(models.SensorTemperature, int(v.Instance))
		f.num("value", v.Actual)
		if v.Actual != nil {
			f.text("location", temperatureSourceName(v.Source))
		}

	case nmea2000.CrossTrackError:
		b.sensor(models.SensorNavigation, m.instanceFor(models.SensorNavigation, src)).
			num("crossTrackError", v.XTE)

	case nmea2000.NavigationData:
		f := b.sensor(models.SensorNavigation, m.instanceFor(models.SensorNavigation, src))
		f.num("distanceToWaypoint", v.DistanceToWaypoint)
		f.num("bearingToWaypoint", v.BearingPositionToDest)
		f.num("bearingOriginToDestination", v.BearingOriginToDest)
		f.num("closingVelocity", v.WaypointClosingVelocity)
		if v.DestinationWaypoint != nil {
			f.text("waypointId", fmt.Sprintf("%.0f", *v.DestinationWaypoint))
		}
		if v.ETA != nil {
			f.text("eta", v.ETA.UTC().Format(time.RFC3339))
		}

	case nmea2000.HeadingTrackControl:
		f := b.sensor(models.SensorAutopilot, m.instanceFor(models.SensorAutopilot, src))
		f.text("mode", steeringModeName(v.SteeringMode))
		f.num("headingTarget", v.HeadingToSteer)

	case nmea2000.SeatalkPilotHeading:
		f := b.sensor(models.SensorAutopilot, m.instanceFor(models.SensorAutopilot, src))
		if v.HeadingMagnetic != nil {
			f.num("pilotHeading", v.HeadingMagnetic)
		} else {
			f.num("pilotHeading", v.HeadingTrue)
		}

	case nmea2000.SeatalkPilotMode:
		f := b.sensor(models.SensorAutopilot, m.instanceFor(models.SensorAutopilot, src))
		f.text("mode", v.Mode)
		if v.Engaged {
			f.text("state", "engaged")
		} else {
			f.text("state", "standby")
		}
	}

	return b.done()
}

// batch collects the updates one message produces. Repeated lookups of the
// same (type, instance) land in one update.
type batch struct {
	ts      time.Time
	updates []models.SensorUpdate
}

func (b *batch) sensor(t models.SensorType, instance int) fields {
	for i := range b.updates {
		if b.updates[i].Type == t && b.updates[i].Instance == instance {
			return fields(b.updates[i].Fields)
		}
	}
	f := fields{}
	b.updates = append(b.updates, models.SensorUpdate{
		Type:      t,
		Instance:  instance,
		Fields:    f,
		Timestamp: b.ts,
	})
	return f
}

// done drops updates whose message carried only not-available sentinels.
func (b *batch) done() []models.SensorUpdate {
	out := b.updates[:0]
	for _, u := range b.updates {
		if len(u.Fields) > 0 {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type fields map[string]models.Reading

func (f fields) num(name string, v *float64) {
	if v != nil {
		f[name] = models.Num(*v)
	}
}

func (f fields) text(name, v string) {
	if v != "" {
		f[name] = models.Text(v)
	}
}

func normalizeAngle(rad float64) float64 {
	rad = math.Mod(rad, 2*math.Pi)
	if rad < 0 {
		rad += 2 * math.Pi
	}
	return rad
}

var tankTypes = map[uint8]string{
	0: "fuel",
	1: "fresh water",
	2: "waste water",
	3: "live well",
	4: "oil",
	5: "black water",
}

func tankTypeName(t uint8) string {
	if name, ok := tankTypes[t]; ok {
		return name
	}
	return "unknown"
}

var temperatureSources = map[uint8]string{
	0:  "sea",
	1:  "outside",
	2:  "inside",
	3:  "engine room",
	4:  "main cabin",
	5:  "live well",
	6:  "bait well",
	7:  "refrigeration",
	8:  "heating",
	13: "freezer",
	14: "exhaust gas",
}

func temperatureSourceName(s uint8) string {
	if name, ok := temperatureSources[s]; ok {
		return name
	}
	return "unknown"
}

var steeringModes = map[uint8]string{
	0: "main cockpit",
	1: "non-follow-up",
	2: "follow-up",
	3: "heading control standalone",
	4: "heading control",
	5: "track control",
}

func steeringModeName(s uint8) string {
	if name, ok := steeringModes[s]; ok {
		return name
	}
	return "unknown"
}
