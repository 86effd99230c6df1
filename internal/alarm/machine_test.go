package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pliefoog/helmwatch/internal/models"
)

func depthThresholds() Thresholds {
	return Thresholds{
		CriticalLow:   ptr(2.0),
		WarningLow:    ptr(5.0),
		Hysteresis:    0.5,
		StaleAfter:    10 * time.Second,
		WarningSound:  "chime",
		CriticalSound: "klaxon",
		Enabled:       true,
	}
}

func evalAt(m *Machine, value float64, now time.Time) (Transition, bool) {
	return m.Evaluate(value, now, now)
}

func TestMachine_EscalatesOnRawThreshold(t *testing.T) {
	m := NewMachine(depthThresholds())
	now := time.Now()

	tr, changed := evalAt(m, 4.9, now)
	assert.True(t, changed)
	assert.Equal(t, models.AlarmNormal, tr.From)
	assert.Equal(t, models.AlarmWarning, tr.To)
	assert.Equal(t, 5.0, *tr.Threshold)
	assert.Equal(t, "chime", tr.Sound)

	tr, changed = evalAt(m, 1.9, now)
	assert.True(t, changed)
	assert.Equal(t, models.AlarmCritical, tr.To)
	assert.Equal(t, 2.0, *tr.Threshold)
	assert.Equal(t, "klaxon", tr.Sound)
}

func TestMachine_DeEscalationNeedsHysteresis(t *testing.T) {
	m := NewMachine(depthThresholds())
	now := time.Now()

	_, _ = evalAt(m, 4.9, now) // warning
	_, changed := evalAt(m, 5.2, now)
	assert.False(t, changed, "5.2 is inside the hysteresis band")
	assert.Equal(t, models.AlarmWarning, m.State())

	tr, changed := evalAt(m, 5.6, now)
	assert.True(t, changed)
	assert.Equal(t, models.AlarmNormal, tr.To)
}

func TestMachine_NoFlappingAtThreshold(t *testing.T) {
	m := NewMachine(depthThresholds())
	now := time.Now()

	transitions := 0
	for i := 0; i < 50; i++ {
		value := 5.0 + 0.1 // just above
		if i%2 == 1 {
			value = 5.0 - 0.1 // just below
		}
		if _, changed := evalAt(m, value, now); changed {
			transitions++
		}
	}

	// One escalation on the first dip, then the band holds the state.
	assert.Equal(t, 1, transitions)
	assert.Equal(t, models.AlarmWarning, m.State())
}

func TestMachine_CriticalDropsStraightToNormal(t *testing.T) {
	m := NewMachine(depthThresholds())
	now := time.Now()

	_, _ = evalAt(m, 1.5, now) // critical
	tr, changed := evalAt(m, 9.0, now)

	assert.True(t, changed)
	assert.Equal(t, models.AlarmCritical, tr.From)
	assert.Equal(t, models.AlarmNormal, tr.To)
}

func TestMachine_CriticalToWarningStep(t *testing.T) {
	m := NewMachine(depthThresholds())
	now := time.Now()

	_, _ = evalAt(m, 1.5, now)
	tr, changed := evalAt(m, 4.0, now) // cleared critical+hysteresis, still under warning

	assert.True(t, changed)
	assert.Equal(t, models.AlarmWarning, tr.To)
}

func TestMachine_StaleOverridesValueState(t *testing.T) {
	m := NewMachine(depthThresholds())
	start := time.Now()

	_, _ = m.Evaluate(8.0, start, start)
	assert.Equal(t, models.AlarmNormal, m.State())

	tr, changed := m.Evaluate(8.0, start, start.Add(11*time.Second))
	assert.True(t, changed)
	assert.Equal(t, models.AlarmStale, tr.To)
	assert.Nil(t, tr.Threshold)
}

func TestMachine_StaleExitsByReEvaluation(t *testing.T) {
	m := NewMachine(depthThresholds())
	start := time.Now()

	_, _ = m.Evaluate(8.0, start, start.Add(11*time.Second))
	assert.Equal(t, models.AlarmStale, m.State())

	// Fresh data arrives with a value in the warning band: the machine
	// settles on warning, never on an assumed normal.
	fresh := start.Add(12 * time.Second)
	tr, changed := m.Evaluate(4.0, fresh, fresh)
	assert.True(t, changed)
	assert.Equal(t, models.AlarmStale, tr.From)
	assert.Equal(t, models.AlarmWarning, tr.To)
}

func TestMachine_HighBounds(t *testing.T) {
	m := NewMachine(Thresholds{
		WarningHigh:  ptr(95.0),
		CriticalHigh: ptr(105.0),
		Hysteresis:   2.0,
		Enabled:      true,
	})
	now := time.Now()

	_, changed := evalAt(m, 94.0, now)
	assert.False(t, changed)

	tr, changed := evalAt(m, 96.0, now)
	assert.True(t, changed)
	assert.Equal(t, models.AlarmWarning, tr.To)
	assert.Equal(t, 95.0, *tr.Threshold)

	tr, changed = evalAt(m, 106.0, now)
	assert.True(t, changed)
	assert.Equal(t, models.AlarmCritical, tr.To)

	_, changed = evalAt(m, 104.0, now)
	assert.False(t, changed, "inside critical hysteresis band")

	tr, changed = evalAt(m, 102.9, now)
	assert.True(t, changed)
	assert.Equal(t, models.AlarmWarning, tr.To)
}

func TestMachine_DisabledStaysNormal(t *testing.T) {
	th := depthThresholds()
	th.Enabled = false
	m := NewMachine(th)
	now := time.Now()

	_, changed := evalAt(m, 0.5, now)
	assert.False(t, changed)
	assert.Equal(t, models.AlarmNormal, m.State())
}

func TestMachine_SetThresholdsResettles(t *testing.T) {
	m := NewMachine(depthThresholds())
	now := time.Now()

	_, _ = evalAt(m, 4.0, now)
	assert.Equal(t, models.AlarmWarning, m.State())

	relaxed := depthThresholds()
	relaxed.WarningLow = ptr(3.0)
	m.SetThresholds(relaxed)

	tr, changed := evalAt(m, 4.0, now)
	assert.True(t, changed)
	assert.Equal(t, models.AlarmNormal, tr.To)
}

func TestThresholds_Validate(t *testing.T) {
	ok := depthThresholds()
	assert.NoError(t, ok.Validate())

	bad := depthThresholds()
	bad.Hysteresis = -1
	assert.Error(t, bad.Validate())

	bad = depthThresholds()
	bad.WarningLow = ptr(1.0) // below critical low
	assert.Error(t, bad.Validate())

	bad = Thresholds{WarningLow: ptr(10.0), WarningHigh: ptr(5.0)}
	assert.Error(t, bad.Validate())

	bad = Thresholds{CriticalLow: ptr(10.0), CriticalHigh: ptr(5.0)}
	assert.Error(t, bad.Validate())

	bad = Thresholds{WarningHigh: ptr(10.0), CriticalHigh: ptr(5.0)}
	assert.Error(t, bad.Validate())
}

func TestDefaults_AllValidate(t *testing.T) {
	for sensor, fields := range Defaults() {
		for field, th := range fields {
			assert.NoError(t, th.Validate(), "%s.%s", sensor, field)
			assert.True(t, th.Enabled, "%s.%s", sensor, field)
		}
	}
}
