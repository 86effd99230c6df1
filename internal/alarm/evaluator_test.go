package alarm

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/pliefoog/helmwatch/internal/models"
)

type staticSource struct {
	targets []Target
}

func (s *staticSource) AlarmTargets() []Target { return s.targets }

func TestEvaluator_SweepEmitsTransitions(t *testing.T) {
	now := time.Now()
	machine := NewMachine(depthThresholds())
	src := &staticSource{targets: []Target{{
		Sensor:     models.SensorDepth,
		Instance:   0,
		Field:      "depth",
		Value:      3.1,
		HasValue:   true,
		LastUpdate: now,
		Machine:    machine,
	}}}
	e := NewEvaluator(src, zerolog.Nop())

	events := e.Sweep(now)
	assert.Len(t, events, 1)
	assert.Equal(t, models.EventAlarmChanged, events[0].Kind)
	assert.Equal(t, models.AlarmNormal, events[0].Previous)
	assert.Equal(t, models.AlarmWarning, events[0].Current)
	assert.Equal(t, "depth", events[0].Field)
	assert.Equal(t, 3.1, *events[0].Value)
	assert.Equal(t, 5.0, *events[0].Threshold)
	assert.Equal(t, "chime", events[0].SoundPattern)
	assert.NotEmpty(t, events[0].ID)
}

func TestEvaluator_SweepIsQuietWithoutChanges(t *testing.T) {
	now := time.Now()
	machine := NewMachine(depthThresholds())
	src := &staticSource{targets: []Target{{
		Sensor:     models.SensorDepth,
		Field:      "depth",
		Value:      8.0,
		HasValue:   true,
		LastUpdate: now,
		Machine:    machine,
	}}}
	e := NewEvaluator(src, zerolog.Nop())

	assert.Empty(t, e.Sweep(now))
	assert.Empty(t, e.Sweep(now.Add(time.Second)))
}

func TestEvaluator_StaleWithoutNumericValue(t *testing.T) {
	start := time.Now()
	machine := NewMachine(depthThresholds())
	src := &staticSource{targets: []Target{{
		Sensor:     models.SensorDepth,
		Field:      "depth",
		HasValue:   false,
		LastUpdate: start,
		Machine:    machine,
	}}}
	e := NewEvaluator(src, zerolog.Nop())

	// Fresh but value-less: mid-band keeps it normal.
	assert.Empty(t, e.Sweep(start))

	events := e.Sweep(start.Add(time.Minute))
	assert.Len(t, events, 1)
	assert.Equal(t, models.AlarmStale, events[0].Current)
	assert.Nil(t, events[0].Value)
}

func TestEvaluator_SkipsTargetsWithoutMachine(t *testing.T) {
	src := &staticSource{targets: []Target{{
		Sensor:   models.SensorDepth,
		Field:    "depth",
		Value:    1.0,
		HasValue: true,
	}}}
	e := NewEvaluator(src, zerolog.Nop())

	assert.Empty(t, e.Sweep(time.Now()))
}
