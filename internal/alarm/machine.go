package alarm

import (
	"sync"
	"time"

	"github.com/pliefoog/helmwatch/internal/models"
)

// Transition describes one state change: the binding threshold that was
// crossed (nil for stale transitions) and the sound the new state plays.
type Transition struct {
	From      models.AlarmState
	To        models.AlarmState
	Threshold *float64
	Sound     string
}

// Machine tracks the alarm state of one metric field. Escalation happens
// the moment a raw bound is crossed; de-escalation additionally requires the
// value to clear the bound by the hysteresis margin. Staleness overrides
// everything and is left by re-evaluating the next fresh value against the
// thresholds, not by assuming normal. The evaluator sweeps on its own
// schedule while readers poll State, so the machine carries its own lock.
type Machine struct {
	mu         sync.Mutex
	thresholds Thresholds
	state      models.AlarmState
}

func NewMachine(t Thresholds) *Machine {
	return &Machine{thresholds: t, state: models.AlarmNormal}
}

func (m *Machine) State() models.AlarmState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Thresholds() Thresholds {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.thresholds
}

// SetThresholds swaps the configuration. State is kept; the next Evaluate
// re-settles it against the new bounds.
func (m *Machine) SetThresholds(t Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds = t
}

// Evaluate feeds one observation. lastUpdate is when the metric was last
// written; now drives the staleness check. The returned transition is only
// meaningful when the bool is true.
func (m *Machine) Evaluate(value float64, lastUpdate, now time.Time) (Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state

	next := m.next(value, lastUpdate, now)
	if next == prev {
		return Transition{}, false
	}
	m.state = next

	tr := Transition{From: prev, To: next}
	switch next {
	case models.AlarmCritical:
		tr.Threshold = m.bindingBound(models.AlarmCritical, value)
		tr.Sound = m.thresholds.CriticalSound
	case models.AlarmWarning:
		tr.Threshold = m.bindingBound(models.AlarmWarning, value)
		tr.Sound = m.thresholds.WarningSound
	}
	return tr, true
}

func (m *Machine) next(value float64, lastUpdate, now time.Time) models.AlarmState {
	if !m.thresholds.Enabled {
		return models.AlarmNormal
	}
	if m.thresholds.StaleAfter > 0 && now.Sub(lastUpdate) > m.thresholds.StaleAfter {
		return models.AlarmStale
	}

	raw := m.severity(value, 0)
	cur := m.state
	if cur == models.AlarmStale {
		// Fresh data again: settle wherever the value sits now.
		return raw
	}

	switch {
	case raw.Rank() > cur.Rank():
		return raw
	case raw.Rank() < cur.Rank():
		// Leaving a state needs the hysteresis margin cleared.
		if m.severity(value, m.thresholds.Hysteresis).Rank() < cur.Rank() {
			return m.severity(value, m.thresholds.Hysteresis)
		}
		return cur
	default:
		return cur
	}
}

// severity classifies a value against the bounds, widening each bound by
// margin toward the normal band. margin 0 is the raw classification.
func (m *Machine) severity(value, margin float64) models.AlarmState {
	t := m.thresholds
	if t.CriticalLow != nil && value <= *t.CriticalLow+margin {
		return models.AlarmCritical
	}
	if t.CriticalHigh != nil && value >= *t.CriticalHigh-margin {
		return models.AlarmCritical
	}
	if t.WarningLow != nil && value <= *t.WarningLow+margin {
		return models.AlarmWarning
	}
	if t.WarningHigh != nil && value >= *t.WarningHigh-margin {
		return models.AlarmWarning
	}
	return models.AlarmNormal
}

// bindingBound picks the bound that put the value into the given state, for
// event payloads.
func (m *Machine) bindingBound(state models.AlarmState, value float64) *float64 {
	t := m.thresholds
	if state == models.AlarmCritical {
		if t.CriticalLow != nil && value <= *t.CriticalLow+t.Hysteresis {
			return t.CriticalLow
		}
		return t.CriticalHigh
	}
	if t.WarningLow != nil && value <= *t.WarningLow+t.Hysteresis {
		return t.WarningLow
	}
	return t.WarningHigh
}
