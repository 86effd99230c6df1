package settings

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pliefoog/helmwatch/internal/alarm"
	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/units"
)

// fakeTarget records applied changes and can refuse them.
type fakeTarget struct {
	units      map[units.Category]string
	thresholds map[string]alarm.Thresholds
	unitErr    error
	thErr      error
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		units:      make(map[units.Category]string),
		thresholds: make(map[string]alarm.Thresholds),
	}
}

func (f *fakeTarget) SetUnit(cat units.Category, unit string) error {
	if f.unitErr != nil {
		return f.unitErr
	}
	f.units[cat] = unit
	return nil
}

func (f *fakeTarget) SetDefaultThresholds(t models.SensorType, field string, th alarm.Thresholds) error {
	if f.thErr != nil {
		return f.thErr
	}
	f.thresholds[string(t)+"."+field] = th
	return nil
}

func newTestListener(target Target) *Listener {
	return &Listener{target: target, logger: zerolog.Nop()}
}

func TestApplyUnitChange(t *testing.T) {
	target := newFakeTarget()
	l := newTestListener(target)

	err := l.ApplyUnitChange([]byte(`{"category":"depth","unit":"ft"}`))
	require.NoError(t, err)
	assert.Equal(t, "ft", target.units[units.Category("depth")])
}

func TestApplyUnitChange_BadJSON(t *testing.T) {
	l := newTestListener(newFakeTarget())

	err := l.ApplyUnitChange([]byte(`{"category":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad unit change")
}

func TestApplyUnitChange_TargetRejects(t *testing.T) {
	target := newFakeTarget()
	target.unitErr = assert.AnError
	l := newTestListener(target)

	err := l.ApplyUnitChange([]byte(`{"category":"depth","unit":"cubits"}`))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestApplyThresholdChange(t *testing.T) {
	target := newFakeTarget()
	l := newTestListener(target)

	payload := []byte(`{
		"sensor_type": "battery",
		"field": "voltage",
		"thresholds": {"critical_low": 11.0, "warning_low": 11.8, "hysteresis": 0.2, "enabled": true}
	}`)
	require.NoError(t, l.ApplyThresholdChange(payload))

	th, ok := target.thresholds["battery.voltage"]
	require.True(t, ok)
	require.NotNil(t, th.CriticalLow)
	assert.InDelta(t, 11.0, *th.CriticalLow, 1e-9)
	assert.True(t, th.Enabled)
}

func TestApplyThresholdChange_TargetRejects(t *testing.T) {
	target := newFakeTarget()
	target.thErr = assert.AnError
	l := newTestListener(target)

	err := l.ApplyThresholdChange([]byte(`{"sensor_type":"battery","field":"nonsense","thresholds":{}}`))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestApplyPreferences_SkipsBadEntries(t *testing.T) {
	target := newFakeTarget()
	target.thErr = assert.AnError // every threshold refused

	prefs := Preferences{
		Units: map[units.Category]string{
			units.Category("depth"): "fathom",
			units.Category("speed"): "kn",
		},
		Thresholds: []ThresholdOverride{
			{Sensor: models.SensorType("battery"), Field: "voltage", Thresholds: alarm.Thresholds{Enabled: true}},
		},
	}
	ApplyPreferences(prefs, target, zerolog.Nop())

	assert.Len(t, target.units, 2)
	assert.Empty(t, target.thresholds)
}

func TestParseThresholdKey(t *testing.T) {
	sensor, field, ok := parseThresholdKey("helmwatch:thresholds:battery:voltage")
	require.True(t, ok)
	assert.Equal(t, models.SensorType("battery"), sensor)
	assert.Equal(t, "voltage", field)

	_, _, ok = parseThresholdKey("helmwatch:thresholds:battery")
	assert.False(t, ok)

	_, _, ok = parseThresholdKey("other:battery:voltage")
	assert.False(t, ok)
}
