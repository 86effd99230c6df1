package sensor

import (
	"sort"
	"sync"
	"time"

	"github.com/pliefoog/helmwatch/internal/alarm"
	"github.com/pliefoog/helmwatch/internal/history"
	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/units"
)

// Instance holds every metric of one physical instrument. Each instance has
// its own lock so a battery bank update never contends with a depth query.
type Instance struct {
	mu         sync.RWMutex
	sensorType models.SensorType
	number     int
	name       string
	lastUpdate time.Time
	stale      bool

	registry *units.Registry
	histCfg  history.Config

	metrics map[string]*MetricValue
	series  map[string]*history.Buffer
	alarms  map[string]*alarm.Machine
}

func newInstance(t models.SensorType, number int, reg *units.Registry, histCfg history.Config) *Instance {
	return &Instance{
		sensorType: t,
		number:     number,
		name:       displayName(t, number),
		registry:   reg,
		histCfg:    histCfg,
		metrics:    make(map[string]*MetricValue),
		series:     make(map[string]*history.Buffer),
		alarms:     make(map[string]*alarm.Machine),
	}
}

func (in *Instance) Type() models.SensorType { return in.sensorType }
func (in *Instance) Number() int             { return in.number }

// Name is the display name: the type label, "#n"-suffixed past instance 0.
func (in *Instance) Name() string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.name
}

func (in *Instance) LastUpdate() time.Time {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.lastUpdate
}

// Stale reports whether the detection service has marked this instance as
// no longer actively reporting.
func (in *Instance) Stale() bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.stale
}

func (in *Instance) setStale(stale bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.stale = stale
}

// apply writes one update batch. Returns the field names that were rejected
// because the schema does not know them.
func (in *Instance) apply(u models.SensorUpdate) []string {
	in.mu.Lock()
	defer in.mu.Unlock()

	var unknown []string
	schema := schemas[in.sensorType]
	for field, reading := range u.Fields {
		spec, ok := schema[field]
		if !ok {
			unknown = append(unknown, field)
			continue
		}

		mv := enrich(reading, spec.Category, u.Timestamp, in.registry)
		in.metrics[field] = &mv

		if !reading.IsText() && spec.Category != units.Text {
			buf, ok := in.series[field]
			if !ok {
				buf = history.NewBuffer(in.histCfg)
				in.series[field] = buf
			}
			buf.Add(reading.Float(), u.Timestamp)
		}
	}
	if u.Timestamp.After(in.lastUpdate) {
		in.lastUpdate = u.Timestamp
	}
	in.stale = false
	return unknown
}

// Metric returns a copy of the named metric. Virtual names ("depth.min",
// "depth.max", "depth.avg") derive from the base field's session stats.
func (in *Instance) Metric(field string) (MetricValue, bool) {
	base, suffix := splitVirtual(field)

	in.mu.RLock()
	defer in.mu.RUnlock()

	mv, ok := in.metrics[base]
	if !ok {
		return MetricValue{}, false
	}
	if suffix == "" {
		return *mv, true
	}

	buf, ok := in.series[base]
	if !ok {
		return MetricValue{}, false
	}
	st := buf.Stats()
	if st.Count == 0 {
		return MetricValue{}, false
	}
	var v float64
	switch suffix {
	case virtualMin:
		v = st.Min
	case virtualMax:
		v = st.Max
	case virtualAvg:
		v = st.Mean
	}
	return enrich(models.Num(v), mv.Category, mv.Timestamp, in.registry), true
}

// Fields lists stored field names, sorted.
func (in *Instance) Fields() []string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	out := make([]string, 0, len(in.metrics))
	for f := range in.metrics {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Range returns the base field's points within [start, end).
func (in *Instance) Range(field string, start, end time.Time) []history.Point {
	base, _ := splitVirtual(field)
	in.mu.RLock()
	buf, ok := in.series[base]
	in.mu.RUnlock()
	if !ok {
		return nil
	}
	return buf.Range(start, end)
}

// Stats returns session aggregates for the base field.
func (in *Instance) Stats(field string) (history.Stats, bool) {
	base, _ := splitVirtual(field)
	in.mu.RLock()
	buf, ok := in.series[base]
	in.mu.RUnlock()
	if !ok {
		return history.Stats{}, false
	}
	return buf.Stats(), true
}

// AlarmState reports the field's machine state; fields without thresholds
// are AlarmNormal.
func (in *Instance) AlarmState(field string) models.AlarmState {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if m, ok := in.alarms[field]; ok {
		return m.State()
	}
	return models.AlarmNormal
}

// Thresholds returns the field's alarm configuration.
func (in *Instance) Thresholds(field string) (alarm.Thresholds, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if m, ok := in.alarms[field]; ok {
		return m.Thresholds(), true
	}
	return alarm.Thresholds{}, false
}

func (in *Instance) setThresholds(field string, t alarm.Thresholds) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if m, ok := in.alarms[field]; ok {
		m.SetThresholds(t)
		return
	}
	in.alarms[field] = alarm.NewMachine(t)
}

// reEnrich recomputes display forms for every metric in the category.
func (in *Instance) reEnrich(cat units.Category) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for field, mv := range in.metrics {
		if mv.Category != cat {
			continue
		}
		fresh := enrich(mv.Reading, mv.Category, mv.Timestamp, in.registry)
		in.metrics[field] = &fresh
	}
}

// prune ages out history on the housekeeping tick.
func (in *Instance) prune(now time.Time) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	for _, buf := range in.series {
		buf.Prune(now)
	}
}

// alarmTargets flattens watched fields for the evaluator.
func (in *Instance) alarmTargets() []alarm.Target {
	in.mu.RLock()
	defer in.mu.RUnlock()

	out := make([]alarm.Target, 0, len(in.alarms))
	for field, machine := range in.alarms {
		target := alarm.Target{
			Sensor:     in.sensorType,
			Instance:   in.number,
			Field:      field,
			LastUpdate: in.lastUpdate,
			Machine:    machine,
		}
		if mv, ok := in.metrics[field]; ok {
			target.LastUpdate = mv.Timestamp
			if !mv.Reading.IsText() {
				target.Value = mv.Reading.Float()
				target.HasValue = true
			}
		} else if in.lastUpdate.IsZero() {
			// Thresholds configured ahead of any data: nothing to evaluate.
			continue
		}
		out = append(out, target)
	}
	return out
}
