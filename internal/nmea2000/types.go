package nmea2000

import "time"

// Supported PGNs.
const (
	PGNRudder              uint32 = 127245
	PGNVesselHeading       uint32 = 127250
	PGNRateOfTurn          uint32 = 127251
	PGNAttitude            uint32 = 127257
	PGNHeadingTrackControl uint32 = 127237
	PGNEngineRapid         uint32 = 127488
	PGNEngineDynamic       uint32 = 127489
	PGNFluidLevel          uint32 = 127505
	PGNDCStatus            uint32 = 127506
	PGNBatteryStatus       uint32 = 127508
	PGNSpeed               uint32 = 128259
	PGNWaterDepth          uint32 = 128267
	PGNPositionRapid       uint32 = 129025
	PGNCogSog              uint32 = 129026
	PGNGNSSPosition        uint32 = 129029
	PGNCrossTrackError     uint32 = 129283
	PGNNavigationData      uint32 = 129284
	PGNWindData            uint32 = 130306
	PGNEnvironment         uint32 = 130310
	PGNEnvironment2        uint32 = 130311
	PGNTemperature         uint32 = 130312
	PGNSeatalkPilotHeading uint32 = 65359
	PGNSeatalkPilotMode    uint32 = 65379
)

// Confidence marks how well a PGN layout is known. Standard PGNs follow the
// published field tables; reverse-engineered ones follow community notes for
// manufacturer-proprietary traffic and may drift across firmware versions.
type Confidence string

const (
	ConfidenceStandard          Confidence = "standard"
	ConfidenceReverseEngineered Confidence = "reverse_engineered"
)

// Message is a decoded, typed PGN. Numeric fields are SI: metres, metres per
// second, radians, degrees Celsius, volts, amperes, pascals, litres. Nil
// pointers mean the device transmitted the not-available sentinel.
type Message interface {
	MessagePGN() uint32
}

// BatteryStatus - PGN 127508.
type BatteryStatus struct {
	Instance    uint8
	Voltage     *float64 // V
	Current     *float64 // A
	Temperature *float64 // Celsius
	SID         uint8
}

func (BatteryStatus) MessagePGN() uint32 { return PGNBatteryStatus }

// DCStatus - PGN 127506, fast packet. Type 0 is battery, 1 alternator,
// 2 convertor, 3 solar cell, 4 wind generator.
type DCStatus struct {
	SID           uint8
	Instance      uint8
	Type          uint8
	StateOfCharge *float64 // percent
	StateOfHealth *float64 // percent
	TimeRemaining *float64 // h
	RippleVoltage *float64 // V
}

func (DCStatus) MessagePGN() uint32 { return PGNDCStatus }

// WaterDepth - PGN 128267. Offset is positive from transducer to waterline,
// negative to keel.
type WaterDepth struct {
	SID    uint8
	Depth  *float64 // m below transducer
	Offset *float64 // m
}

func (WaterDepth) MessagePGN() uint32 { return PGNWaterDepth }

// Speed - PGN 128259.
type Speed struct {
	SID               uint8
	SpeedThroughWater *float64 // m/s
	SpeedOverGround   *float64 // m/s
}

func (Speed) MessagePGN() uint32 { return PGNSpeed }

// PositionRapid - PGN 129025.
type PositionRapid struct {
	Latitude  *float64 // decimal degrees
	Longitude *float64 // decimal degrees
}

func (PositionRapid) MessagePGN() uint32 { return PGNPositionRapid }

// CogSog - PGN 129026.
type CogSog struct {
	SID              uint8
	CourseOverGround *float64 // radians
	SpeedOverGround  *float64 // m/s
}

func (CogSog) MessagePGN() uint32 { return PGNCogSog }

// GNSSPosition - PGN 129029, fast packet.
type GNSSPosition struct {
	SID        uint8
	FixTime    *time.Time
	Latitude   *float64 // decimal degrees
	Longitude  *float64 // decimal degrees
	Altitude   *float64 // m
	Method     uint8
	Satellites *float64
	HDOP       *float64
	PDOP       *float64
}

func (GNSSPosition) MessagePGN() uint32 { return PGNGNSSPosition }

// VesselHeading - PGN 127250. Reference 0 is true, 1 magnetic.
type VesselHeading struct {
	SID       uint8
	Heading   *float64 // radians
	Deviation *float64 // radians, east positive
	Variation *float64 // radians, east positive
	Reference uint8
}

func (VesselHeading) MessagePGN() uint32 { return PGNVesselHeading }

// RateOfTurn - PGN 127251. Positive turns to starboard.
type RateOfTurn struct {
	SID  uint8
	Rate *float64 // radians per second
}

func (RateOfTurn) MessagePGN() uint32 { return PGNRateOfTurn }

// Attitude - PGN 127257.
type Attitude struct {
	SID   uint8
	Yaw   *float64 // radians
	Pitch *float64 // radians, bow up positive
	Roll  *float64 // radians, starboard down positive
}

func (Attitude) MessagePGN() uint32 { return PGNAttitude }

// EngineRapid - PGN 127488.
type EngineRapid struct {
	Instance      uint8
	Speed         *float64 // rev/min
	BoostPressure *float64 // Pa
	TiltTrim      *float64 // percent
}

func (EngineRapid) MessagePGN() uint32 { return PGNEngineRapid }

// EngineDynamic - PGN 127489, fast packet.
type EngineDynamic struct {
	Instance           uint8
	OilPressure        *float64 // Pa
	OilTemperature     *float64 // Celsius
	CoolantTemperature *float64 // Celsius
	AlternatorVoltage  *float64 // V
	FuelRate           *float64 // L/h
	TotalHours         *float64 // h
	CoolantPressure    *float64 // Pa
	FuelPressure       *float64 // Pa
	Load               *float64 // percent
	Torque             *float64 // percent
}

func (EngineDynamic) MessagePGN() uint32 { return PGNEngineDynamic }

// FluidLevel - PGN 127505. Type 0 is fuel, 1 fresh water, 2 waste water,
// 3 live well, 4 oil, 5 black water.
type FluidLevel struct {
	Instance uint8
	Type     uint8
	Level    *float64 // percent
	Capacity *float64 // L
}

func (FluidLevel) MessagePGN() uint32 { return PGNFluidLevel }

// Rudder - PGN 127245. Positive angles are starboard.
type Rudder struct {
	Instance       uint8
	DirectionOrder uint8
	AngleOrder     *float64 // radians
	Position       *float64 // radians
}

func (Rudder) MessagePGN() uint32 { return PGNRudder }

// WindData - PGN 130306. Reference 2 is apparent; 0, 1, 3 and 4 are true
// wind against various ground/water references.
type WindData struct {
	SID       uint8
	Speed     *float64 // m/s
	Angle     *float64 // radians
	Reference uint8
}

func (WindData) MessagePGN() uint32 { return PGNWindData }

// Environment - PGN 130310.
type Environment struct {
	SID                 uint8
	WaterTemperature    *float64 // Celsius
	AirTemperature      *float64 // Celsius
	AtmosphericPressure *float64 // Pa
}

func (Environment) MessagePGN() uint32 { return PGNEnvironment }

// Environment2 - PGN 130311. TemperatureSource 0 is sea, 1 outside air.
type Environment2 struct {
	SID                 uint8
	TemperatureSource   uint8
	Temperature         *float64 // Celsius
	Humidity            *float64 // percent
	AtmosphericPressure *float64 // Pa
}

func (Environment2) MessagePGN() uint32 { return PGNEnvironment2 }

// Temperature - PGN 130312.
type Temperature struct {
	SID      uint8
	Instance uint8
	Source   uint8
	Actual   *float64 // Celsius
	SetPoint *float64 // Celsius
}

func (Temperature) MessagePGN() uint32 { return PGNTemperature }

// CrossTrackError - PGN 129283. Positive means steer right to return to
// course.
type CrossTrackError struct {
	SID  uint8
	Mode uint8
	XTE  *float64 // m
}

func (CrossTrackError) MessagePGN() uint32 { return PGNCrossTrackError }

// NavigationData - PGN 129284, fast packet.
type NavigationData struct {
	SID                     uint8
	DistanceToWaypoint      *float64 // m
	BearingReference        uint8
	ETA                     *time.Time
	BearingOriginToDest     *float64 // radians
	BearingPositionToDest   *float64 // radians
	DestinationWaypoint     *float64
	WaypointClosingVelocity *float64 // m/s
}

func (NavigationData) MessagePGN() uint32 { return PGNNavigationData }

// HeadingTrackControl - PGN 127237, fast packet.
type HeadingTrackControl struct {
	SteeringMode         uint8
	HeadingReference     uint8
	CommandedRudderAngle *float64 // radians
	HeadingToSteer       *float64 // radians
	Track                *float64 // radians
}

func (HeadingTrackControl) MessagePGN() uint32 { return PGNHeadingTrackControl }

// SeatalkPilotHeading - PGN 65359, Raymarine proprietary.
type SeatalkPilotHeading struct {
	SID             uint8
	HeadingTrue     *float64 // radians
	HeadingMagnetic *float64 // radians
	Confidence      Confidence
}

func (SeatalkPilotHeading) MessagePGN() uint32 { return PGNSeatalkPilotHeading }

// SeatalkPilotMode - PGN 65379, Raymarine proprietary.
type SeatalkPilotMode struct {
	Mode       string // "standby", "auto", "wind", "track" or "unknown"
	Engaged    bool
	Confidence Confidence
}

func (SeatalkPilotMode) MessagePGN() uint32 { return PGNSeatalkPilotMode }
