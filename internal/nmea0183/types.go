package nmea0183

// Message is a decoded, typed sentence. Numeric fields are normalized to SI
// at decode time: metres, metres per second, radians, degrees Celsius.
// Optional fields are nil pointers when the transmitting device left the
// field empty.
type Message interface {
	SentenceType() string
}

// DBT - depth below transducer. Depth is metres, taken from whichever of the
// metres/feet/fathoms triplet the device filled in.
type DBT struct {
	Talker string
	Depth  *float64
}

func (DBT) SentenceType() string { return "DBT" }

// DPT - depth of water plus transducer offset. Positive offset is distance
// from transducer to waterline, negative to keel.
type DPT struct {
	Talker string
	Depth  *float64
	Offset *float64
}

func (DPT) SentenceType() string { return "DPT" }

// GGA - GPS fix data.
type GGA struct {
	Talker     string
	Time       string
	Latitude   *float64 // decimal degrees, north positive
	Longitude  *float64 // decimal degrees, east positive
	FixQuality *float64 // 0 = invalid, 1 = GPS, 2 = DGPS, ...
	Satellites *float64
	HDOP       *float64
	Altitude   *float64 // metres above mean sea level
}

func (GGA) SentenceType() string { return "GGA" }

// GLL - geographic position.
type GLL struct {
	Talker    string
	Latitude  *float64
	Longitude *float64
	Time      string
	Valid     bool
}

func (GLL) SentenceType() string { return "GLL" }

// RMC - recommended minimum navigation information.
type RMC struct {
	Talker           string
	Time             string
	Valid            bool
	Latitude         *float64
	Longitude        *float64
	SpeedOverGround  *float64 // m/s
	CourseOverGround *float64 // radians true
	Date             string
	Variation        *float64 // radians, east positive
}

func (RMC) SentenceType() string { return "RMC" }

// VTG - course over ground and ground speed.
type VTG struct {
	Talker          string
	CourseTrue      *float64 // radians
	CourseMagnetic  *float64 // radians
	SpeedOverGround *float64 // m/s
}

func (VTG) SentenceType() string { return "VTG" }

// HDG - heading, deviation and variation from a magnetic sensor.
type HDG struct {
	Talker    string
	Heading   *float64 // radians, magnetic sensor reading
	Deviation *float64 // radians, east positive
	Variation *float64 // radians, east positive
}

func (HDG) SentenceType() string { return "HDG" }

// HDM - magnetic heading.
type HDM struct {
	Talker  string
	Heading *float64 // radians
}

func (HDM) SentenceType() string { return "HDM" }

// HDT - true heading.
type HDT struct {
	Talker  string
	Heading *float64 // radians
}

func (HDT) SentenceType() string { return "HDT" }

// MWV - wind speed and angle. Reference "R" is apparent (relative to the
// vessel), "T" is true.
type MWV struct {
	Talker    string
	Angle     *float64 // radians, 0..2pi clockwise from bow
	Reference string
	Speed     *float64 // m/s
	Valid     bool
}

func (MWV) SentenceType() string { return "MWV" }

// MTW - water temperature.
type MTW struct {
	Talker      string
	Temperature *float64 // Celsius
}

func (MTW) SentenceType() string { return "MTW" }

// VHW - water speed and heading.
type VHW struct {
	Talker            string
	HeadingTrue       *float64 // radians
	HeadingMagnetic   *float64 // radians
	SpeedThroughWater *float64 // m/s
}

func (VHW) SentenceType() string { return "VHW" }

// ROT - rate of turn. Positive turns to starboard.
type ROT struct {
	Talker string
	Rate   *float64 // radians per second
	Valid  bool
}

func (ROT) SentenceType() string { return "ROT" }

// RSA - rudder sensor angle. Positive is starboard trim. Port is nil on
// single-rudder vessels.
type RSA struct {
	Talker    string
	Starboard *float64 // radians
	Port      *float64 // radians
}

func (RSA) SentenceType() string { return "RSA" }

// XDR - transducer measurements. One sentence carries up to eight
// quadruplets; values are converted to SI per the units field.
type XDR struct {
	Talker       string
	Measurements []XDRMeasurement
}

func (XDR) SentenceType() string { return "XDR" }

// XDRMeasurement is a single transducer quadruplet. Value is SI for the
// known unit letters (C, B/P, V, D) and passed through raw otherwise.
type XDRMeasurement struct {
	Type  string // "C" temperature, "P" pressure, "U" voltage, "A" angle, ...
	Value float64
	Units string
	Name  string
}
