package eventbus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/nmea2000"
)

type fakeIngestor struct {
	lines  []string
	frames []nmea2000.Frame
}

func (f *fakeIngestor) IngestLine(line string)        { f.lines = append(f.lines, line) }
func (f *fakeIngestor) IngestFrame(fr nmea2000.Frame) { f.frames = append(f.frames, fr) }

func TestSubjectFor_RoutesByKind(t *testing.T) {
	cases := map[string]string{
		models.EventInstanceDetected: SubjectInstanceDetected,
		models.EventInstanceLost:     SubjectInstanceLost,
		models.EventAlarmChanged:     SubjectAlarm,
	}
	for kind, want := range cases {
		got, err := subjectFor(kind)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := subjectFor("something.else")
	assert.Error(t, err)
}

func TestFrameEnvelope_RoundTrip(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	env := FrameEnvelope{
		PGN:       nmea2000.PGNBatteryStatus,
		Source:    42,
		Priority:  6,
		Timestamp: ts.UnixNano(),
		Data:      []byte{0x00, 0x28, 0x05, 0xD0, 0x07, 0x2C, 0x0B, 0x01},
	}

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded FrameEnvelope
	require.NoError(t, json.Unmarshal(raw, &decoded))

	f := decoded.Frame()
	assert.Equal(t, nmea2000.PGNBatteryStatus, f.PGN)
	assert.Equal(t, uint8(42), f.Source)
	assert.True(t, f.Timestamp.Equal(ts))
	assert.Equal(t, env.Data, f.Data)
}

func TestFrameEnvelope_ZeroTimestampMeansReceiveTime(t *testing.T) {
	f := FrameEnvelope{PGN: 128267, Data: []byte{0x01}}.Frame()
	assert.True(t, f.Timestamp.IsZero())
}

func TestRawSubscriber_Handlers(t *testing.T) {
	ing := &fakeIngestor{}
	s := &RawSubscriber{ingestor: ing, logger: zerolog.Nop()}

	s.handleRaw0183(&nats.Msg{Data: []byte("$SDDBT,12.4,f,3.8,M,2.1,F*39")})
	require.Len(t, ing.lines, 1)
	assert.Equal(t, "$SDDBT,12.4,f,3.8,M,2.1,F*39", ing.lines[0])

	env, err := json.Marshal(FrameEnvelope{PGN: 127508, Source: 7, Data: []byte{0x00}})
	require.NoError(t, err)
	s.handleRaw2000(&nats.Msg{Data: env})
	require.Len(t, ing.frames, 1)
	assert.Equal(t, uint32(127508), ing.frames[0].PGN)

	// Garbage envelopes are dropped without reaching the ingestor.
	s.handleRaw2000(&nats.Msg{Data: []byte("{not json")})
	assert.Len(t, ing.frames, 1)
}

func TestPublishEvent_UnknownKindRejected(t *testing.T) {
	p := &Publisher{logger: zerolog.Nop()}
	err := p.PublishEvent(fakeEvent("mystery.kind"))
	assert.Error(t, err)
}

type fakeEvent string

func (f fakeEvent) EventKind() string { return string(f) }
