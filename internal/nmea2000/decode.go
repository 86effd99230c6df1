package nmea2000

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Not-available sentinels: unsigned fields transmit all ones, signed fields
// the maximum positive value. Decoders map both to nil rather than zero.

const raymarineManufacturer = 1851

// Decode interprets a complete payload (single frame or reassembled fast
// packet) as a typed message with SI values. Unsupported PGNs return
// (nil, nil).
func Decode(pgn uint32, data []byte) (Message, error) {
	switch pgn {
	case PGNBatteryStatus:
		return decodeBatteryStatus(data)
	case PGNDCStatus:
		return decodeDCStatus(data)
	case PGNWaterDepth:
		return decodeWaterDepth(data)
	case PGNSpeed:
		return decodeSpeed(data)
	case PGNPositionRapid:
		return decodePositionRapid(data)
	case PGNCogSog:
		return decodeCogSog(data)
	case PGNGNSSPosition:
		return decodeGNSSPosition(data)
	case PGNVesselHeading:
		return decodeVesselHeading(data)
	case PGNRateOfTurn:
		return decodeRateOfTurn(data)
	case PGNAttitude:
		return decodeAttitude(data)
	case PGNEngineRapid:
		return decodeEngineRapid(data)
	case PGNEngineDynamic:
		return decodeEngineDynamic(data)
	case PGNFluidLevel:
		return decodeFluidLevel(data)
	case PGNRudder:
		return decodeRudder(data)
	case PGNWindData:
		return decodeWindData(data)
	case PGNEnvironment:
		return decodeEnvironment(data)
	case PGNEnvironment2:
		return decodeEnvironment2(data)
	case PGNTemperature:
		return decodeTemperature(data)
	case PGNCrossTrackError:
		return decodeCrossTrackError(data)
	case PGNNavigationData:
		return decodeNavigationData(data)
	case PGNHeadingTrackControl:
		return decodeHeadingTrackControl(data)
	case PGNSeatalkPilotHeading:
		return decodeSeatalkPilotHeading(data)
	case PGNSeatalkPilotMode:
		return decodeSeatalkPilotMode(data)
	}
	return nil, nil
}

func decodeBatteryStatus(data []byte) (Message, error) {
	if len(data) < 8 {
		return nil, shortFrame(PGNBatteryStatus, len(data))
	}
	return BatteryStatus{
		Instance:    data[0],
		Voltage:     u16Field(data, 1, 0.01),
		Current:     i16Field(data, 3, 0.1),
		Temperature: kelvinU16(data, 5, 0.01),
		SID:         data[7],
	}, nil
}

func decodeDCStatus(data []byte) (Message, error) {
	if len(data) < 9 {
		return nil, shortFrame(PGNDCStatus, len(data))
	}
	var remaining *float64
	if mins := u16Field(data, 5, 1); mins != nil {
		h := *mins / 60
		remaining = &h
	}
	return DCStatus{
		SID:           data[0],
		Instance:      data[1],
		Type:          data[2],
		StateOfCharge: u8Field(data, 3, 1),
		StateOfHealth: u8Field(data, 4, 1),
		TimeRemaining: remaining,
		RippleVoltage: u16Field(data, 7, 0.01),
	}, nil
}

func decodeWaterDepth(data []byte) (Message, error) {
	if len(data) < 7 {
		return nil, shortFrame(PGNWaterDepth, len(data))
	}
	return WaterDepth{
		SID:    data[0],
		Depth:  u32Field(data, 1, 0.01),
		Offset: i16Field(data, 5, 0.001),
	}, nil
}

func decodeSpeed(data []byte) (Message, error) {
	if len(data) < 5 {
		return nil, shortFrame(PGNSpeed, len(data))
	}
	return Speed{
		SID:               data[0],
		SpeedThroughWater: u16Field(data, 1, 0.01),
		SpeedOverGround:   u16Field(data, 3, 0.01),
	}, nil
}

func decodePositionRapid(data []byte) (Message, error) {
	if len(data) < 8 {
		return nil, shortFrame(PGNPositionRapid, len(data))
	}
	return PositionRapid{
		Latitude:  i32Field(data, 0, 1e-7),
		Longitude: i32Field(data, 4, 1e-7),
	}, nil
}

func decodeCogSog(data []byte) (Message, error) {
	if len(data) < 5 {
		return nil, shortFrame(PGNCogSog, len(data))
	}
	return CogSog{
		SID:              data[0],
		CourseOverGround: u16Field(data, 1, 0.0001),
		SpeedOverGround:  u16Field(data, 3, 0.01),
	}, nil
}

func decodeGNSSPosition(data []byte) (Message, error) {
	if len(data) < 43 {
		return nil, shortFrame(PGNGNSSPosition, len(data))
	}
	msg := GNSSPosition{
		SID:       data[0],
		Latitude:  i64Field(data, 7, 1e-16),
		Longitude: i64Field(data, 15, 1e-16),
		Altitude:  i64Field(data, 23, 1e-6),
		Method:    data[31] >> 4,
		HDOP:      i16Field(data, 34, 0.01),
		PDOP:      i16Field(data, 36, 0.01),
	}
	if data[33] != 0xFF {
		sats := float64(data[33])
		msg.Satellites = &sats
	}
	days := binary.LittleEndian.Uint16(data[1:])
	secs := binary.LittleEndian.Uint32(data[3:])
	if days != 0xFFFF && secs != 0xFFFFFFFF {
		t := dayTime(days, secs)
		msg.FixTime = &t
	}
	return msg, nil
}

func decodeVesselHeading(data []byte) (Message, error) {
	if len(data) < 8 {
		return nil, shortFrame(PGNVesselHeading, len(data))
	}
	return VesselHeading{
		SID:       data[0],
		Heading:   u16Field(data, 1, 0.0001),
		Deviation: i16Field(data, 3, 0.0001),
		Variation: i16Field(data, 5, 0.0001),
		Reference: data[7] & 0x03,
	}, nil
}

func decodeRateOfTurn(data []byte) (Message, error) {
	if len(data) < 5 {
		return nil, shortFrame(PGNRateOfTurn, len(data))
	}
	return RateOfTurn{
		SID:  data[0],
		Rate: i32Field(data, 1, 3.125e-8),
	}, nil
}

func decodeAttitude(data []byte) (Message, error) {
	if len(data) < 7 {
		return nil, shortFrame(PGNAttitude, len(data))
	}
	return Attitude{
		SID:   data[0],
		Yaw:   i16Field(data, 1, 0.0001),
		Pitch: i16Field(data, 3, 0.0001),
		Roll:  i16Field(data, 5, 0.0001),
	}, nil
}

func decodeEngineRapid(data []byte) (Message, error) {
	if len(data) < 6 {
		return nil, shortFrame(PGNEngineRapid, len(data))
	}
	return EngineRapid{
		Instance:      data[0],
		Speed:         u16Field(data, 1, 0.25),
		BoostPressure: u16Field(data, 3, 100),
		TiltTrim:      i8Field(data, 5, 1),
	}, nil
}

func decodeEngineDynamic(data []byte) (Message, error) {
	if len(data) < 26 {
		return nil, shortFrame(PGNEngineDynamic, len(data))
	}
	msg := EngineDynamic{
		Instance:           data[0],
		OilPressure:        u16Field(data, 1, 100),
		OilTemperature:     kelvinU16(data, 3, 0.1),
		CoolantTemperature: kelvinU16(data, 5, 0.01),
		AlternatorVoltage:  i16Field(data, 7, 0.01),
		FuelRate:           i16Field(data, 9, 0.1),
		CoolantPressure:    u16Field(data, 15, 100),
		FuelPressure:       u16Field(data, 17, 1000),
		Load:               i8Field(data, 24, 1),
		Torque:             i8Field(data, 25, 1),
	}
	if secs := u32Field(data, 11, 1); secs != nil {
		hours := *secs / 3600.0
		msg.TotalHours = &hours
	}
	return msg, nil
}

func decodeFluidLevel(data []byte) (Message, error) {
	if len(data) < 7 {
		return nil, shortFrame(PGNFluidLevel, len(data))
	}
	return FluidLevel{
		Instance: data[0] & 0x0F,
		Type:     data[0] >> 4,
		Level:    i16Field(data, 1, 0.004),
		Capacity: u32Field(data, 3, 0.1),
	}, nil
}

func decodeRudder(data []byte) (Message, error) {
	if len(data) < 6 {
		return nil, shortFrame(PGNRudder, len(data))
	}
	return Rudder{
		Instance:       data[0],
		DirectionOrder: data[1] & 0x07,
		AngleOrder:     i16Field(data, 2, 0.0001),
		Position:       i16Field(data, 4, 0.0001),
	}, nil
}

func decodeWindData(data []byte) (Message, error) {
	if len(data) < 6 {
		return nil, shortFrame(PGNWindData, len(data))
	}
	return WindData{
		SID:       data[0],
		Speed:     u16Field(data, 1, 0.01),
		Angle:     u16Field(data, 3, 0.0001),
		Reference: data[5] & 0x07,
	}, nil
}

func decodeEnvironment(data []byte) (Message, error) {
	if len(data) < 7 {
		return nil, shortFrame(PGNEnvironment, len(data))
	}
	return Environment{
		SID:                 data[0],
		WaterTemperature:    kelvinU16(data, 1, 0.01),
		AirTemperature:      kelvinU16(data, 3, 0.01),
		AtmosphericPressure: u16Field(data, 5, 100),
	}, nil
}

func decodeEnvironment2(data []byte) (Message, error) {
	if len(data) < 8 {
		return nil, shortFrame(PGNEnvironment2, len(data))
	}
	return Environment2{
		SID:                 data[0],
		TemperatureSource:   data[1] & 0x3F,
		Temperature:         kelvinU16(data, 2, 0.01),
		Humidity:            i16Field(data, 4, 0.004),
		AtmosphericPressure: u16Field(data, 6, 100),
	}, nil
}

func decodeTemperature(data []byte) (Message, error) {
	if len(data) < 7 {
		return nil, shortFrame(PGNTemperature, len(data))
	}
	return Temperature{
		SID:      data[0],
		Instance: data[1],
		Source:   data[2],
		Actual:   kelvinU16(data, 3, 0.01),
		SetPoint: kelvinU16(data, 5, 0.01),
	}, nil
}

func decodeCrossTrackError(data []byte) (Message, error) {
	if len(data) < 6 {
		return nil, shortFrame(PGNCrossTrackError, len(data))
	}
	return CrossTrackError{
		SID:  data[0],
		Mode: data[1] & 0x0F,
		XTE:  i32Field(data, 2, 0.01),
	}, nil
}

func decodeNavigationData(data []byte) (Message, error) {
	if len(data) < 34 {
		return nil, shortFrame(PGNNavigationData, len(data))
	}
	msg := NavigationData{
		SID:                     data[0],
		DistanceToWaypoint:      u32Field(data, 1, 0.01),
		BearingReference:        (data[5] >> 6) & 0x03,
		BearingOriginToDest:     u16Field(data, 12, 0.0001),
		BearingPositionToDest:   u16Field(data, 14, 0.0001),
		DestinationWaypoint:     u32Field(data, 20, 1),
		WaypointClosingVelocity: i16Field(data, 32, 0.01),
	}
	etaSecs := binary.LittleEndian.Uint32(data[6:])
	etaDays := binary.LittleEndian.Uint16(data[10:])
	if etaSecs != 0xFFFFFFFF && etaDays != 0xFFFF {
		t := dayTime(etaDays, etaSecs)
		msg.ETA = &t
	}
	return msg, nil
}

func decodeHeadingTrackControl(data []byte) (Message, error) {
	if len(data) < 9 {
		return nil, shortFrame(PGNHeadingTrackControl, len(data))
	}
	return HeadingTrackControl{
		SteeringMode:         (data[1] >> 5) & 0x07,
		HeadingReference:     data[1] & 0x03,
		CommandedRudderAngle: i16Field(data, 3, 0.0001),
		HeadingToSteer:       u16Field(data, 5, 0.0001),
		Track:                u16Field(data, 7, 0.0001),
	}, nil
}

func decodeSeatalkPilotHeading(data []byte) (Message, error) {
	if len(data) < 7 {
		return nil, shortFrame(PGNSeatalkPilotHeading, len(data))
	}
	if binary.LittleEndian.Uint16(data)&0x07FF != raymarineManufacturer {
		return nil, &DecodeError{PGN: PGNSeatalkPilotHeading, Reason: ReasonBadLength, Detail: "manufacturer code is not Raymarine"}
	}
	return SeatalkPilotHeading{
		SID:             data[2],
		HeadingTrue:     u16Field(data, 3, 0.0001),
		HeadingMagnetic: u16Field(data, 5, 0.0001),
		Confidence:      ConfidenceReverseEngineered,
	}, nil
}

// Seatalk pilot mode words seen in the wild. Anything else decodes as
// "unknown" rather than failing.
var seatalkPilotModes = map[uint16]string{
	0x0000: "standby",
	0x0040: "auto",
	0x0100: "wind",
	0x0180: "track",
}

func decodeSeatalkPilotMode(data []byte) (Message, error) {
	if len(data) < 4 {
		return nil, shortFrame(PGNSeatalkPilotMode, len(data))
	}
	if binary.LittleEndian.Uint16(data)&0x07FF != raymarineManufacturer {
		return nil, &DecodeError{PGN: PGNSeatalkPilotMode, Reason: ReasonBadLength, Detail: "manufacturer code is not Raymarine"}
	}
	mode, ok := seatalkPilotModes[binary.LittleEndian.Uint16(data[2:])]
	if !ok {
		mode = "unknown"
	}
	return SeatalkPilotMode{
		Mode:       mode,
		Engaged:    ok && mode != "standby",
		Confidence: ConfidenceReverseEngineered,
	}, nil
}

func shortFrame(pgn uint32, got int) error {
	return &DecodeError{PGN: pgn, Reason: ReasonShortFrame, Detail: fmt.Sprintf("payload is %d bytes", got)}
}

// dayTime converts the days-since-epoch plus 0.1ms-since-midnight pair used
// by GNSS and navigation PGNs.
func dayTime(days uint16, tenthMillis uint32) time.Time {
	base := time.Unix(int64(days)*86400, 0).UTC()
	return base.Add(time.Duration(tenthMillis) * 100 * time.Microsecond)
}

func u8Field(data []byte, off int, scale float64) *float64 {
	if off >= len(data) {
		return nil
	}
	raw := data[off]
	if raw == 0xFF {
		return nil
	}
	v := float64(raw) * scale
	return &v
}

func u16Field(data []byte, off int, scale float64) *float64 {
	if off+2 > len(data) {
		return nil
	}
	raw := binary.LittleEndian.Uint16(data[off:])
	if raw == 0xFFFF {
		return nil
	}
	v := float64(raw) * scale
	return &v
}

func i16Field(data []byte, off int, scale float64) *float64 {
	if off+2 > len(data) {
		return nil
	}
	raw := int16(binary.LittleEndian.Uint16(data[off:]))
	if raw == 0x7FFF {
		return nil
	}
	v := float64(raw) * scale
	return &v
}

func u32Field(data []byte, off int, scale float64) *float64 {
	if off+4 > len(data) {
		return nil
	}
	raw := binary.LittleEndian.Uint32(data[off:])
	if raw == 0xFFFFFFFF {
		return nil
	}
	v := float64(raw) * scale
	return &v
}

func i32Field(data []byte, off int, scale float64) *float64 {
	if off+4 > len(data) {
		return nil
	}
	raw := int32(binary.LittleEndian.Uint32(data[off:]))
	if raw == 0x7FFFFFFF {
		return nil
	}
	v := float64(raw) * scale
	return &v
}

func i64Field(data []byte, off int, scale float64) *float64 {
	if off+8 > len(data) {
		return nil
	}
	raw := int64(binary.LittleEndian.Uint64(data[off:]))
	if raw == 0x7FFFFFFFFFFFFFFF {
		return nil
	}
	v := float64(raw) * scale
	return &v
}

func i8Field(data []byte, off int, scale float64) *float64 {
	if off >= len(data) {
		return nil
	}
	raw := int8(data[off])
	if raw == 0x7F {
		return nil
	}
	v := float64(raw) * scale
	return &v
}

// kelvinU16 reads a scaled unsigned Kelvin field and converts to Celsius.
func kelvinU16(data []byte, off int, scale float64) *float64 {
	v := u16Field(data, off, scale)
	if v == nil {
		return nil
	}
	c := *v - 273.15
	return &c
}
