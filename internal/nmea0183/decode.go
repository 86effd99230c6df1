package nmea0183

import (
	"math"
	"strconv"
	"strings"
)

const (
	knotsToMS   = 1852.0 / 3600.0
	kmhToMS     = 1.0 / 3.6
	feetToM     = 0.3048
	fathomsToM  = 1.8288
	degToRad    = math.Pi / 180.0
	degMinToRad = degToRad / 60.0
)

// Decode interprets a parsed sentence as one of the supported types and
// returns a typed message with SI values. Unsupported sentence types return
// (nil, nil) so callers can count them without treating them as failures.
func Decode(s Sentence) (Message, error) {
	switch s.Type {
	case "DBT":
		return decodeDBT(s)
	case "DPT":
		return decodeDPT(s)
	case "GGA":
		return decodeGGA(s)
	case "GLL":
		return decodeGLL(s)
	case "RMC":
		return decodeRMC(s)
	case "VTG":
		return decodeVTG(s)
	case "HDG":
		return decodeHDG(s)
	case "HDM":
		return decodeHDM(s)
	case "HDT":
		return decodeHDT(s)
	case "MWV":
		return decodeMWV(s)
	case "MTW":
		return decodeMTW(s)
	case "VHW":
		return decodeVHW(s)
	case "ROT":
		return decodeROT(s)
	case "RSA":
		return decodeRSA(s)
	case "XDR":
		return decodeXDR(s)
	}
	return nil, nil
}

func decodeDBT(s Sentence) (Message, error) {
	feet, err := optFloat(s, 0)
	if err != nil {
		return nil, err
	}
	metres, err := optFloat(s, 2)
	if err != nil {
		return nil, err
	}
	fathoms, err := optFloat(s, 4)
	if err != nil {
		return nil, err
	}

	msg := DBT{Talker: s.Talker}
	switch {
	case metres != nil:
		msg.Depth = metres
	case feet != nil:
		msg.Depth = scaled(feet, feetToM)
	case fathoms != nil:
		msg.Depth = scaled(fathoms, fathomsToM)
	}
	return msg, nil
}

func decodeDPT(s Sentence) (Message, error) {
	depth, err := optFloat(s, 0)
	if err != nil {
		return nil, err
	}
	offset, err := optFloat(s, 1)
	if err != nil {
		return nil, err
	}
	return DPT{Talker: s.Talker, Depth: depth, Offset: offset}, nil
}

func decodeGGA(s Sentence) (Message, error) {
	lat, err := optLatitude(s, 1, 2)
	if err != nil {
		return nil, err
	}
	lon, err := optLongitude(s, 3, 4)
	if err != nil {
		return nil, err
	}
	quality, err := optFloat(s, 5)
	if err != nil {
		return nil, err
	}
	sats, err := optFloat(s, 6)
	if err != nil {
		return nil, err
	}
	hdop, err := optFloat(s, 7)
	if err != nil {
		return nil, err
	}
	alt, err := optFloat(s, 8)
	if err != nil {
		return nil, err
	}
	return GGA{
		Talker:     s.Talker,
		Time:       s.Field(0),
		Latitude:   lat,
		Longitude:  lon,
		FixQuality: quality,
		Satellites: sats,
		HDOP:       hdop,
		Altitude:   alt,
	}, nil
}

func decodeGLL(s Sentence) (Message, error) {
	lat, err := optLatitude(s, 0, 1)
	if err != nil {
		return nil, err
	}
	lon, err := optLongitude(s, 2, 3)
	if err != nil {
		return nil, err
	}
	return GLL{
		Talker:    s.Talker,
		Latitude:  lat,
		Longitude: lon,
		Time:      s.Field(4),
		Valid:     s.Field(5) == "A",
	}, nil
}

func decodeRMC(s Sentence) (Message, error) {
	lat, err := optLatitude(s, 2, 3)
	if err != nil {
		return nil, err
	}
	lon, err := optLongitude(s, 4, 5)
	if err != nil {
		return nil, err
	}
	sog, err := optFloat(s, 6)
	if err != nil {
		return nil, err
	}
	cog, err := optAngle(s, 7)
	if err != nil {
		return nil, err
	}
	variation, err := optSignedAngle(s, 9, 10, "E", "W")
	if err != nil {
		return nil, err
	}
	return RMC{
		Talker:           s.Talker,
		Time:             s.Field(0),
		Valid:            s.Field(1) == "A",
		Latitude:         lat,
		Longitude:        lon,
		SpeedOverGround:  scaled(sog, knotsToMS),
		CourseOverGround: cog,
		Date:             s.Field(8),
		Variation:        variation,
	}, nil
}

func decodeVTG(s Sentence) (Message, error) {
	courseTrue, err := optAngle(s, 0)
	if err != nil {
		return nil, err
	}
	courseMag, err := optAngle(s, 2)
	if err != nil {
		return nil, err
	}
	sogKnots, err := optFloat(s, 4)
	if err != nil {
		return nil, err
	}
	sog := scaled(sogKnots, knotsToMS)
	if sog == nil {
		sogKmh, err := optFloat(s, 6)
		if err != nil {
			return nil, err
		}
		sog = scaled(sogKmh, kmhToMS)
	}
	return VTG{
		Talker:          s.Talker,
		CourseTrue:      courseTrue,
		CourseMagnetic:  courseMag,
		SpeedOverGround: sog,
	}, nil
}

func decodeHDG(s Sentence) (Message, error) {
	heading, err := optAngle(s, 0)
	if err != nil {
		return nil, err
	}
	deviation, err := optSignedAngle(s, 1, 2, "E", "W")
	if err != nil {
		return nil, err
	}
	variation, err := optSignedAngle(s, 3, 4, "E", "W")
	if err != nil {
		return nil, err
	}
	return HDG{Talker: s.Talker, Heading: heading, Deviation: deviation, Variation: variation}, nil
}

func decodeHDM(s Sentence) (Message, error) {
	heading, err := optAngle(s, 0)
	if err != nil {
		return nil, err
	}
	return HDM{Talker: s.Talker, Heading: heading}, nil
}

func decodeHDT(s Sentence) (Message, error) {
	heading, err := optAngle(s, 0)
	if err != nil {
		return nil, err
	}
	return HDT{Talker: s.Talker, Heading: heading}, nil
}

func decodeMWV(s Sentence) (Message, error) {
	angle, err := optAngle(s, 0)
	if err != nil {
		return nil, err
	}
	speed, err := optFloat(s, 2)
	if err != nil {
		return nil, err
	}
	switch s.Field(3) {
	case "N":
		speed = scaled(speed, knotsToMS)
	case "K":
		speed = scaled(speed, kmhToMS)
	case "M", "":
		// already m/s
	default:
		return nil, errMalformed("MWV: unknown speed unit %q", s.Field(3))
	}
	ref := s.Field(1)
	if ref != "R" && ref != "T" {
		return nil, errMalformed("MWV: unknown reference %q", ref)
	}
	return MWV{
		Talker:    s.Talker,
		Angle:     angle,
		Reference: ref,
		Speed:     speed,
		Valid:     s.Field(4) == "A",
	}, nil
}

func decodeMTW(s Sentence) (Message, error) {
	temp, err := optFloat(s, 0)
	if err != nil {
		return nil, err
	}
	return MTW{Talker: s.Talker, Temperature: temp}, nil
}

func decodeVHW(s Sentence) (Message, error) {
	headingTrue, err := optAngle(s, 0)
	if err != nil {
		return nil, err
	}
	headingMag, err := optAngle(s, 2)
	if err != nil {
		return nil, err
	}
	stwKnots, err := optFloat(s, 4)
	if err != nil {
		return nil, err
	}
	stw := scaled(stwKnots, knotsToMS)
	if stw == nil {
		stwKmh, err := optFloat(s, 6)
		if err != nil {
			return nil, err
		}
		stw = scaled(stwKmh, kmhToMS)
	}
	return VHW{
		Talker:            s.Talker,
		HeadingTrue:       headingTrue,
		HeadingMagnetic:   headingMag,
		SpeedThroughWater: stw,
	}, nil
}

func decodeROT(s Sentence) (Message, error) {
	rate, err := optFloat(s, 0)
	if err != nil {
		return nil, err
	}
	return ROT{
		Talker: s.Talker,
		Rate:   scaled(rate, degMinToRad),
		Valid:  s.Field(1) == "A",
	}, nil
}

func decodeRSA(s Sentence) (Message, error) {
	var stbd, port *float64
	if s.Field(1) == "A" {
		v, err := optFloat(s, 0)
		if err != nil {
			return nil, err
		}
		stbd = scaled(v, degToRad)
	}
	if s.Field(3) == "A" {
		v, err := optFloat(s, 2)
		if err != nil {
			return nil, err
		}
		port = scaled(v, degToRad)
	}
	return RSA{Talker: s.Talker, Starboard: stbd, Port: port}, nil
}

func decodeXDR(s Sentence) (Message, error) {
	if len(s.Fields)%4 != 0 {
		return nil, errMalformed("XDR: field count %d not a multiple of 4", len(s.Fields))
	}
	msg := XDR{Talker: s.Talker}
	for i := 0; i+3 < len(s.Fields); i += 4 {
		raw, err := optFloat(s, i+1)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}
		m := XDRMeasurement{
			Type:  s.Field(i),
			Value: *raw,
			Units: s.Field(i + 2),
			Name:  s.Field(i + 3),
		}
		switch m.Units {
		case "B": // bar
			m.Value *= 1e5
		case "D": // degrees
			m.Value *= degToRad
		case "F": // Fahrenheit
			m.Value = (m.Value - 32.0) * 5.0 / 9.0
		}
		msg.Measurements = append(msg.Measurements, m)
	}
	return msg, nil
}

// optFloat parses field i, mapping the empty field to nil.
func optFloat(s Sentence, i int) (*float64, error) {
	raw := s.Field(i)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errMalformed("%s field %d: %q is not numeric", s.Type, i, raw)
	}
	return &v, nil
}

// optAngle parses a degrees field into radians normalized to [0, 2pi).
func optAngle(s Sentence, i int) (*float64, error) {
	v, err := optFloat(s, i)
	if err != nil || v == nil {
		return nil, err
	}
	rad := normalizeAngle(*v * degToRad)
	return &rad, nil
}

// optSignedAngle parses a degrees magnitude plus hemisphere-letter pair into
// signed radians, positive for pos ("E") and negative for neg ("W").
func optSignedAngle(s Sentence, vi, hi int, pos, neg string) (*float64, error) {
	v, err := optFloat(s, vi)
	if err != nil || v == nil {
		return nil, err
	}
	rad := *v * degToRad
	switch s.Field(hi) {
	case pos, "":
	case neg:
		rad = -rad
	default:
		return nil, errMalformed("%s field %d: unknown direction %q", s.Type, hi, s.Field(hi))
	}
	return &rad, nil
}

// optLatitude parses the ddmm.mmmm / N-S field pair into decimal degrees.
func optLatitude(s Sentence, vi, hi int) (*float64, error) {
	return optCoordinate(s, vi, hi, 2, "N", "S")
}

// optLongitude parses the dddmm.mmmm / E-W field pair into decimal degrees.
func optLongitude(s Sentence, vi, hi int) (*float64, error) {
	return optCoordinate(s, vi, hi, 3, "E", "W")
}

func optCoordinate(s Sentence, vi, hi int, degDigits int, pos, neg string) (*float64, error) {
	raw := s.Field(vi)
	if raw == "" {
		return nil, nil
	}
	dot := strings.IndexByte(raw, '.')
	if dot < 0 {
		dot = len(raw)
	}
	if dot < degDigits+1 {
		return nil, errMalformed("%s field %d: coordinate %q too short", s.Type, vi, raw)
	}
	split := dot - 2 // minutes always occupy two integer digits
	deg, err := strconv.ParseFloat(raw[:split], 64)
	if err != nil {
		return nil, errMalformed("%s field %d: %q is not a coordinate", s.Type, vi, raw)
	}
	minutes, err := strconv.ParseFloat(raw[split:], 64)
	if err != nil || minutes >= 60.0 {
		return nil, errMalformed("%s field %d: %q is not a coordinate", s.Type, vi, raw)
	}
	v := deg + minutes/60.0
	switch s.Field(hi) {
	case pos:
	case neg:
		v = -v
	default:
		return nil, errMalformed("%s field %d: unknown hemisphere %q", s.Type, hi, s.Field(hi))
	}
	return &v, nil
}

func scaled(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v * factor
	return &out
}

func normalizeAngle(rad float64) float64 {
	rad = math.Mod(rad, 2*math.Pi)
	if rad < 0 {
		rad += 2 * math.Pi
	}
	return rad
}
