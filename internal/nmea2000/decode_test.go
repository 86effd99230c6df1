package nmea2000

import (
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecode_BatteryStatus(t *testing.T) {
	data := []byte{0x00, 0x28, 0x05, 0xD0, 0x07, 0x2C, 0x0B, 0x01}

	msg, err := Decode(PGNBatteryStatus, data)
	assert.NoError(t, err)

	bat, ok := msg.(BatteryStatus)
	assert.True(t, ok)
	assert.Equal(t, uint8(0), bat.Instance)
	assert.NotNil(t, bat.Voltage)
	assert.InDelta(t, 13.20, *bat.Voltage, 1e-9)
	assert.NotNil(t, bat.Current)
	assert.InDelta(t, 200.0, *bat.Current, 1e-9)
	assert.Equal(t, uint8(1), bat.SID)
}

func TestDecode_BatteryStatus_NotAvailableSentinels(t *testing.T) {
	// Unsigned all-ones voltage, signed max-positive current.
	data := []byte{0x02, 0xFF, 0xFF, 0xFF, 0x7F, 0xFF, 0xFF, 0xFF}

	msg, err := Decode(PGNBatteryStatus, data)
	assert.NoError(t, err)

	bat := msg.(BatteryStatus)
	assert.Equal(t, uint8(2), bat.Instance)
	assert.Nil(t, bat.Voltage)
	assert.Nil(t, bat.Current)
	assert.Nil(t, bat.Temperature)
}

func TestDecode_DCStatus(t *testing.T) {
	// SID 1, battery instance 0, type 0, 85% charge, 95% health,
	// 120 minutes remaining, 0.50 V ripple.
	data := []byte{0x01, 0x00, 0x00, 0x55, 0x5F, 0x78, 0x00, 0x32, 0x00}

	msg, err := Decode(PGNDCStatus, data)
	assert.NoError(t, err)

	dc, ok := msg.(DCStatus)
	assert.True(t, ok)
	assert.Equal(t, uint8(0), dc.Instance)
	assert.InDelta(t, 85.0, *dc.StateOfCharge, 1e-9)
	assert.InDelta(t, 95.0, *dc.StateOfHealth, 1e-9)
	assert.InDelta(t, 2.0, *dc.TimeRemaining, 1e-9)
	assert.InDelta(t, 0.5, *dc.RippleVoltage, 1e-9)
	assert.True(t, IsFastPacket(PGNDCStatus))
}

func TestDecode_DCStatus_NotAvailable(t *testing.T) {
	data := []byte{0xFF, 0x03, 0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

	msg, err := Decode(PGNDCStatus, data)
	assert.NoError(t, err)

	dc := msg.(DCStatus)
	assert.Equal(t, uint8(3), dc.Instance)
	assert.Nil(t, dc.StateOfCharge)
	assert.Nil(t, dc.StateOfHealth)
	assert.Nil(t, dc.TimeRemaining)
	assert.Nil(t, dc.RippleVoltage)
}

func TestDecode_WaterDepth(t *testing.T) {
	data := []byte{0x00, 0xE8, 0x03, 0x00, 0x00, 0x44, 0xFD, 0xFF}

	msg, err := Decode(PGNWaterDepth, data)
	assert.NoError(t, err)

	depth := msg.(WaterDepth)
	assert.InDelta(t, 10.0, *depth.Depth, 1e-9)
	assert.InDelta(t, -0.7, *depth.Offset, 1e-9)
}

func TestDecode_Speed(t *testing.T) {
	data := []byte{0x00, 0x6C, 0x01, 0x90, 0x01, 0x00, 0xFF, 0xFF}

	msg, err := Decode(PGNSpeed, data)
	assert.NoError(t, err)

	spd := msg.(Speed)
	assert.InDelta(t, 3.64, *spd.SpeedThroughWater, 1e-9)
	assert.InDelta(t, 4.00, *spd.SpeedOverGround, 1e-9)
}

func TestDecode_PositionRapid(t *testing.T) {
	data := make([]byte, 8)
	lat := int32(481173000)   // 48.1173000
	lon := int32(-1225000000) // -122.50
	binary.LittleEndian.PutUint32(data[0:], uint32(lat))
	binary.LittleEndian.PutUint32(data[4:], uint32(lon))

	msg, err := Decode(PGNPositionRapid, data)
	assert.NoError(t, err)

	pos := msg.(PositionRapid)
	assert.InDelta(t, 48.1173, *pos.Latitude, 1e-7)
	assert.InDelta(t, -122.5, *pos.Longitude, 1e-7)
}

func TestDecode_CogSog(t *testing.T) {
	data := []byte{0x01, 0xB8, 0x7A, 0xFA, 0x00, 0xFF, 0xFF, 0xFF}

	msg, err := Decode(PGNCogSog, data)
	assert.NoError(t, err)

	cs := msg.(CogSog)
	assert.InDelta(t, 3.1416, *cs.CourseOverGround, 1e-9)
	assert.InDelta(t, 2.50, *cs.SpeedOverGround, 1e-9)
}

func TestDecode_VesselHeading(t *testing.T) {
	data := []byte{0x00, 0x30, 0x2A, 0xFF, 0x7F, 0xC8, 0x00, 0xFD}

	msg, err := Decode(PGNVesselHeading, data)
	assert.NoError(t, err)

	hdg := msg.(VesselHeading)
	assert.InDelta(t, 1.08, *hdg.Heading, 1e-9)
	assert.Nil(t, hdg.Deviation)
	assert.InDelta(t, 0.02, *hdg.Variation, 1e-9)
	assert.Equal(t, uint8(1), hdg.Reference)
}

func TestDecode_RateOfTurn(t *testing.T) {
	data := make([]byte, 8)
	data[0] = 0x05
	binary.LittleEndian.PutUint32(data[1:], uint32(int32(320000000)))

	msg, err := Decode(PGNRateOfTurn, data)
	assert.NoError(t, err)

	rot := msg.(RateOfTurn)
	assert.InDelta(t, 320000000*3.125e-8, *rot.Rate, 1e-9)
}

func TestDecode_Attitude(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint16(data[1:], uint16(int16(15708)))
	pitch := int16(-500)
	binary.LittleEndian.PutUint16(data[3:], uint16(pitch))
	binary.LittleEndian.PutUint16(data[5:], uint16(int16(1200)))

	msg, err := Decode(PGNAttitude, data)
	assert.NoError(t, err)

	att := msg.(Attitude)
	assert.InDelta(t, 1.5708, *att.Yaw, 1e-9)
	assert.InDelta(t, -0.05, *att.Pitch, 1e-9)
	assert.InDelta(t, 0.12, *att.Roll, 1e-9)
}

func TestDecode_EngineRapid(t *testing.T) {
	data := []byte{0x01, 0xB8, 0x0B, 0xFF, 0xFF, 0x7F, 0xFF, 0xFF}

	msg, err := Decode(PGNEngineRapid, data)
	assert.NoError(t, err)

	eng := msg.(EngineRapid)
	assert.Equal(t, uint8(1), eng.Instance)
	assert.InDelta(t, 750.0, *eng.Speed, 1e-9)
	assert.Nil(t, eng.BoostPressure)
	assert.Nil(t, eng.TiltTrim)
}

func TestDecode_EngineDynamic(t *testing.T) {
	data := make([]byte, 26)
	data[0] = 0x00
	binary.LittleEndian.PutUint16(data[1:], 3000)  // 300 kPa oil
	binary.LittleEndian.PutUint16(data[3:], 3731)  // 373.1 K oil temp
	binary.LittleEndian.PutUint16(data[5:], 36315) // 363.15 K coolant
	binary.LittleEndian.PutUint16(data[7:], uint16(int16(1410)))
	binary.LittleEndian.PutUint16(data[9:], uint16(int16(125)))
	binary.LittleEndian.PutUint32(data[11:], 7200)
	binary.LittleEndian.PutUint16(data[15:], 0xFFFF)
	binary.LittleEndian.PutUint16(data[17:], 0xFFFF)
	data[24] = 75
	data[25] = 0x7F

	msg, err := Decode(PGNEngineDynamic, data)
	assert.NoError(t, err)

	eng := msg.(EngineDynamic)
	assert.InDelta(t, 300000.0, *eng.OilPressure, 1e-9)
	assert.InDelta(t, 99.95, *eng.OilTemperature, 1e-9)
	assert.InDelta(t, 90.0, *eng.CoolantTemperature, 1e-9)
	assert.InDelta(t, 14.1, *eng.AlternatorVoltage, 1e-9)
	assert.InDelta(t, 12.5, *eng.FuelRate, 1e-9)
	assert.InDelta(t, 2.0, *eng.TotalHours, 1e-9)
	assert.Nil(t, eng.CoolantPressure)
	assert.InDelta(t, 75.0, *eng.Load, 1e-9)
	assert.Nil(t, eng.Torque)
}

func TestDecode_FluidLevel(t *testing.T) {
	data := []byte{0x02, 0xD4, 0x30, 0xD0, 0x07, 0x00, 0x00, 0xFF}

	msg, err := Decode(PGNFluidLevel, data)
	assert.NoError(t, err)

	tank := msg.(FluidLevel)
	assert.Equal(t, uint8(2), tank.Instance)
	assert.Equal(t, uint8(0), tank.Type)
	assert.InDelta(t, 50.0, *tank.Level, 1e-9)
	assert.InDelta(t, 200.0, *tank.Capacity, 1e-9)
}

func TestDecode_Rudder(t *testing.T) {
	data := make([]byte, 8)
	data[0] = 0x00
	data[1] = 0xF8 // direction order 0
	binary.LittleEndian.PutUint16(data[2:], uint16(int16(0x7FFF)))
	pos := int16(-786)
	binary.LittleEndian.PutUint16(data[4:], uint16(pos))

	msg, err := Decode(PGNRudder, data)
	assert.NoError(t, err)

	rud := msg.(Rudder)
	assert.Nil(t, rud.AngleOrder)
	assert.InDelta(t, -0.0786, *rud.Position, 1e-9)
}

func TestDecode_WindData(t *testing.T) {
	data := []byte{0x00, 0x08, 0x02, 0x5C, 0x3D, 0xFA, 0xFF, 0xFF}

	msg, err := Decode(PGNWindData, data)
	assert.NoError(t, err)

	wind := msg.(WindData)
	assert.InDelta(t, 5.2, *wind.Speed, 1e-9)
	assert.InDelta(t, 1.5708, *wind.Angle, 1e-9)
	assert.Equal(t, uint8(2), wind.Reference)
}

func TestDecode_Environment(t *testing.T) {
	data := make([]byte, 8)
	data[0] = 0x00
	binary.LittleEndian.PutUint16(data[1:], 29065) // 290.65 K water
	binary.LittleEndian.PutUint16(data[3:], 0xFFFF)
	binary.LittleEndian.PutUint16(data[5:], 1013) // 101300 Pa

	msg, err := Decode(PGNEnvironment, data)
	assert.NoError(t, err)

	env := msg.(Environment)
	assert.InDelta(t, 17.5, *env.WaterTemperature, 1e-9)
	assert.Nil(t, env.AirTemperature)
	assert.InDelta(t, 101300.0, *env.AtmosphericPressure, 1e-9)
}

func TestDecode_Temperature(t *testing.T) {
	data := []byte{0x00, 0x01, 0x00, 0x83, 0x72, 0xFF, 0xFF, 0xFF}

	msg, err := Decode(PGNTemperature, data)
	assert.NoError(t, err)

	temp := msg.(Temperature)
	assert.Equal(t, uint8(1), temp.Instance)
	assert.Equal(t, uint8(0), temp.Source)
	assert.InDelta(t, 20.0, *temp.Actual, 1e-9)
	assert.Nil(t, temp.SetPoint)
}

func TestDecode_CrossTrackError(t *testing.T) {
	data := make([]byte, 8)
	data[0] = 0x00
	data[1] = 0x00
	xteRaw := int32(-12550)
	binary.LittleEndian.PutUint32(data[2:], uint32(xteRaw))

	msg, err := Decode(PGNCrossTrackError, data)
	assert.NoError(t, err)

	xte := msg.(CrossTrackError)
	assert.InDelta(t, -125.5, *xte.XTE, 1e-9)
}

func TestDecode_SeatalkPilotHeading(t *testing.T) {
	data := []byte{0x3B, 0x9F, 0x00, 0x5C, 0x3D, 0xFF, 0xFF, 0xFF}

	msg, err := Decode(PGNSeatalkPilotHeading, data)
	assert.NoError(t, err)

	ph := msg.(SeatalkPilotHeading)
	assert.Equal(t, ConfidenceReverseEngineered, ph.Confidence)
	assert.InDelta(t, 1.5708, *ph.HeadingTrue, 1e-9)
	assert.Nil(t, ph.HeadingMagnetic)
}

func TestDecode_SeatalkPilotHeading_WrongManufacturer(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x5C, 0x3D, 0xFF, 0xFF, 0xFF}

	_, err := Decode(PGNSeatalkPilotHeading, data)
	assert.Error(t, err)
}

func TestDecode_SeatalkPilotMode(t *testing.T) {
	data := []byte{0x3B, 0x9F, 0x40, 0x00, 0xFF, 0xFF, 0xFF, 0xFF}

	msg, err := Decode(PGNSeatalkPilotMode, data)
	assert.NoError(t, err)

	pm := msg.(SeatalkPilotMode)
	assert.Equal(t, "auto", pm.Mode)
	assert.True(t, pm.Engaged)
}

func TestDecode_SeatalkPilotMode_UnknownWord(t *testing.T) {
	data := []byte{0x3B, 0x9F, 0xEF, 0xBE, 0xFF, 0xFF, 0xFF, 0xFF}

	msg, err := Decode(PGNSeatalkPilotMode, data)
	assert.NoError(t, err)

	pm := msg.(SeatalkPilotMode)
	assert.Equal(t, "unknown", pm.Mode)
	assert.False(t, pm.Engaged)
}

func TestDecode_UnsupportedPGN(t *testing.T) {
	msg, err := Decode(60928, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	assert.NoError(t, err)
	assert.Nil(t, msg)
}

func TestDecode_ShortPayload(t *testing.T) {
	_, err := Decode(PGNBatteryStatus, []byte{0x00, 0x28})

	var de *DecodeError
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, ReasonShortFrame, de.Reason)
}

func TestIsFastPacket(t *testing.T) {
	assert.True(t, IsFastPacket(PGNGNSSPosition))
	assert.True(t, IsFastPacket(PGNEngineDynamic))
	assert.False(t, IsFastPacket(PGNBatteryStatus))
	assert.False(t, IsFastPacket(PGNWindData))
}

// gnssPayload builds a 43-byte PGN 129029 payload.
func gnssPayload(t *testing.T) []byte {
	t.Helper()
	p := make([]byte, 43)
	p[0] = 0x01
	binary.LittleEndian.PutUint16(p[1:], 20323)      // days since epoch
	binary.LittleEndian.PutUint32(p[3:], 432005000)  // 12:00:00.5
	binary.LittleEndian.PutUint64(p[7:], uint64(int64(481173000000000000)))   // 48.1173
	gnssLon := int64(-1225000000000000000) // -122.5
	binary.LittleEndian.PutUint64(p[15:], uint64(gnssLon))
	binary.LittleEndian.PutUint64(p[23:], uint64(int64(12500000)))            // 12.5 m
	p[31] = 0x10 // GNSS fix, method 1
	p[32] = 0xFC
	p[33] = 9
	binary.LittleEndian.PutUint16(p[34:], uint16(int16(90))) // HDOP 0.9
	binary.LittleEndian.PutUint16(p[36:], uint16(int16(150)))
	binary.LittleEndian.PutUint32(p[38:], uint32(int32(2100)))
	p[42] = 0
	return p
}

func TestDecode_GNSSPosition(t *testing.T) {
	msg, err := Decode(PGNGNSSPosition, gnssPayload(t))
	assert.NoError(t, err)

	gnss := msg.(GNSSPosition)
	assert.InDelta(t, 48.1173, *gnss.Latitude, 1e-9)
	assert.InDelta(t, -122.5, *gnss.Longitude, 1e-9)
	assert.InDelta(t, 12.5, *gnss.Altitude, 1e-9)
	assert.Equal(t, uint8(1), gnss.Method)
	assert.InDelta(t, 9, *gnss.Satellites, 1e-9)
	assert.InDelta(t, 0.9, *gnss.HDOP, 1e-9)
	assert.NotNil(t, gnss.FixTime)
	assert.Equal(t, 12, gnss.FixTime.Hour())
}

// splitFastPacket frames a payload the way a gateway would: index 0 carries
// the total length plus six bytes, later frames seven bytes each.
func splitFastPacket(pgn uint32, source uint8, seq uint8, payload []byte) []Frame {
	var frames []Frame
	first := Frame{PGN: pgn, Source: source, Data: append([]byte{seq << 5, byte(len(payload))}, payload[:6]...)}
	frames = append(frames, first)
	for i, off := 1, 6; off < len(payload); i, off = i+1, off+7 {
		end := off + 7
		chunk := make([]byte, 0, 8)
		chunk = append(chunk, seq<<5|byte(i))
		if end > len(payload) {
			chunk = append(chunk, payload[off:]...)
			for len(chunk) < 8 {
				chunk = append(chunk, 0xFF)
			}
		} else {
			chunk = append(chunk, payload[off:end]...)
		}
		frames = append(frames, Frame{PGN: pgn, Source: source, Data: chunk})
	}
	return frames
}

func TestReassembler_CompletesInOrder(t *testing.T) {
	r := NewReassembler(time.Second)
	payload := gnssPayload(t)
	frames := splitFastPacket(PGNGNSSPosition, 35, 5, payload)

	for i, f := range frames[:len(frames)-1] {
		out, err := r.Push(f)
		assert.NoError(t, err, "frame %d", i)
		assert.Nil(t, out, "frame %d", i)
	}

	out, err := r.Push(frames[len(frames)-1])
	assert.NoError(t, err)
	assert.Equal(t, payload, out)
	assert.Equal(t, 0, r.Pending())
}

func TestReassembler_OutOfOrderAborts(t *testing.T) {
	r := NewReassembler(time.Second)
	frames := splitFastPacket(PGNGNSSPosition, 35, 2, gnssPayload(t))

	_, err := r.Push(frames[0])
	assert.NoError(t, err)

	_, err = r.Push(frames[2]) // skipped frame 1
	var re *ReassemblyError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, ReasonOutOfOrder, re.Reason)
	assert.Equal(t, 0, r.Pending())

	// The late frame now has no assembly to join.
	_, err = r.Push(frames[1])
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, ReasonOrphanFrame, re.Reason)
}

func TestReassembler_SequenceMismatchAborts(t *testing.T) {
	r := NewReassembler(time.Second)
	seqA := splitFastPacket(PGNGNSSPosition, 35, 1, gnssPayload(t))
	seqB := splitFastPacket(PGNGNSSPosition, 35, 3, gnssPayload(t))

	_, err := r.Push(seqA[0])
	assert.NoError(t, err)

	_, err = r.Push(seqB[1])
	var re *ReassemblyError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, ReasonOutOfOrder, re.Reason)
}

func TestReassembler_StartFrameReplacesPartial(t *testing.T) {
	r := NewReassembler(time.Second)
	old := splitFastPacket(PGNGNSSPosition, 35, 1, gnssPayload(t))
	payload := gnssPayload(t)
	payload[0] = 0x02
	fresh := splitFastPacket(PGNGNSSPosition, 35, 2, payload)

	_, err := r.Push(old[0])
	assert.NoError(t, err)

	var out []byte
	for _, f := range fresh {
		out, err = r.Push(f)
		assert.NoError(t, err)
	}
	assert.Equal(t, payload, out)
}

func TestReassembler_IndependentSources(t *testing.T) {
	r := NewReassembler(time.Second)
	a := splitFastPacket(PGNGNSSPosition, 35, 1, gnssPayload(t))
	b := splitFastPacket(PGNGNSSPosition, 52, 1, gnssPayload(t))

	_, err := r.Push(a[0])
	assert.NoError(t, err)
	_, err = r.Push(b[0])
	assert.NoError(t, err)
	assert.Equal(t, 2, r.Pending())
}

func TestReassembler_SweepStale(t *testing.T) {
	r := NewReassembler(100 * time.Millisecond)
	frames := splitFastPacket(PGNGNSSPosition, 35, 1, gnssPayload(t))
	frames[0].Timestamp = time.Now().Add(-time.Second)

	_, err := r.Push(frames[0])
	assert.NoError(t, err)
	assert.Equal(t, 1, r.Pending())

	dropped := r.SweepStale(time.Now())
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 0, r.Pending())
}

func TestReassembler_RejectsBadDeclaredLength(t *testing.T) {
	r := NewReassembler(time.Second)

	_, err := r.Push(Frame{PGN: PGNGNSSPosition, Data: []byte{0x20, 0x00, 1, 2, 3, 4, 5, 6}})
	var re *ReassemblyError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, ReasonBadLength, re.Reason)
}
