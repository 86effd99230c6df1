package alarm

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/pliefoog/helmwatch/internal/models"
)

// Target is one watched metric field flattened out of the cache: the current
// value, when it was written, and the machine holding its alarm state.
type Target struct {
	Sensor     models.SensorType
	Instance   int
	Field      string
	Value      float64
	HasValue   bool
	LastUpdate time.Time
	Machine    *Machine
}

// Source enumerates the targets to sweep. The sensor cache implements it.
type Source interface {
	AlarmTargets() []Target
}

// Evaluator sweeps every watched metric on a fixed interval rather than per
// update, so a burst of applies costs one evaluation per tick.
type Evaluator struct {
	source Source
	logger zerolog.Logger
}

func NewEvaluator(source Source, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		source: source,
		logger: logger.With().Str("component", "alarm_evaluator").Logger(),
	}
}

// Sweep evaluates all targets and returns one event per state transition.
// Text metrics carry no value to compare and only participate in staleness.
func (e *Evaluator) Sweep(now time.Time) []models.AlarmEvent {
	var events []models.AlarmEvent

	for _, target := range e.source.AlarmTargets() {
		if target.Machine == nil {
			continue
		}
		value := target.Value
		if !target.HasValue {
			// No numeric reading: only the staleness clock applies. Feeding
			// a mid-band value keeps the bound checks out of the way.
			value = midBand(target.Machine.Thresholds())
		}
		tr, changed := target.Machine.Evaluate(value, target.LastUpdate, now)
		if !changed {
			continue
		}

		ev := models.NewAlarmEvent(target.Sensor, target.Instance, target.Field, tr.From, tr.To, now)
		if target.HasValue {
			v := target.Value
			ev.Value = &v
		}
		ev.Threshold = tr.Threshold
		ev.SoundPattern = tr.Sound

		e.logger.Info().
			Str("sensor_type", string(target.Sensor)).
			Int("instance", target.Instance).
			Str("field", target.Field).
			Str("from", string(tr.From)).
			Str("to", string(tr.To)).
			Msg("Alarm state changed")

		events = append(events, ev)
	}
	return events
}

// midBand picks a value inside the normal band of the given thresholds.
func midBand(t Thresholds) float64 {
	var lo, hi *float64
	if t.WarningLow != nil {
		lo = t.WarningLow
	} else if t.CriticalLow != nil {
		lo = t.CriticalLow
	}
	if t.WarningHigh != nil {
		hi = t.WarningHigh
	} else if t.CriticalHigh != nil {
		hi = t.CriticalHigh
	}
	switch {
	case lo != nil && hi != nil:
		return (*lo + *hi) / 2.0
	case lo != nil:
		return *lo + 2.0*t.Hysteresis + 1.0
	case hi != nil:
		return *hi - 2.0*t.Hysteresis - 1.0
	default:
		return 0
	}
}
