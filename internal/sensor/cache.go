package sensor

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pliefoog/helmwatch/internal/alarm"
	"github.com/pliefoog/helmwatch/internal/history"
	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/units"
)

type instanceKey struct {
	t models.SensorType
	n int
}

// Cache is the store of record for sensor state. Apply, ReEnrich and
// SetThresholds are called from the pipeline's single writer goroutine;
// every read method is safe for concurrent use.
type Cache struct {
	mu        sync.RWMutex
	instances map[instanceKey]*Instance

	registry *units.Registry
	histCfg  history.Config
	defaults map[models.SensorType]map[string]alarm.Thresholds
	logger   zerolog.Logger

	// OnSchemaMismatch, when set, is called for every rejected field name.
	OnSchemaMismatch func(t models.SensorType, field string)
}

func NewCache(reg *units.Registry, histCfg history.Config, defaults map[models.SensorType]map[string]alarm.Thresholds, logger zerolog.Logger) *Cache {
	if defaults == nil {
		defaults = alarm.Defaults()
	}
	return &Cache{
		instances: make(map[instanceKey]*Instance),
		registry:  reg,
		histCfg:   histCfg,
		defaults:  defaults,
		logger:    logger.With().Str("component", "sensor_cache").Logger(),
	}
}

// Apply writes one update: creates the instance on first sight, arms
// default thresholds for its watched fields, stores and enriches each known
// field, and appends numeric fields to history. Unknown fields are dropped
// and reported, never stored.
func (c *Cache) Apply(u models.SensorUpdate) {
	if len(u.Fields) == 0 {
		return
	}
	in := c.getOrCreate(u.Type, u.Instance)

	unknown := in.apply(u)
	for _, field := range unknown {
		c.logger.Warn().
			Str("sensor_type", string(u.Type)).
			Int("instance", u.Instance).
			Str("field", field).
			Msg("Dropping field not present in schema")
		if c.OnSchemaMismatch != nil {
			c.OnSchemaMismatch(u.Type, field)
		}
	}
}

func (c *Cache) getOrCreate(t models.SensorType, n int) *Instance {
	key := instanceKey{t: t, n: n}

	c.mu.RLock()
	in, ok := c.instances[key]
	c.mu.RUnlock()
	if ok {
		return in
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if in, ok = c.instances[key]; ok {
		return in
	}

	in = newInstance(t, n, c.registry, c.histCfg)
	for field, th := range c.defaults[t] {
		in.alarms[field] = alarm.NewMachine(th)
	}
	c.instances[key] = in

	c.logger.Info().
		Str("sensor_type", string(t)).
		Int("instance", n).
		Str("name", in.name).
		Msg("New sensor instance")
	return in
}

// Instance looks up one instance.
func (c *Cache) Instance(t models.SensorType, n int) (*Instance, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	in, ok := c.instances[instanceKey{t: t, n: n}]
	return in, ok
}

// Instances snapshots all instances ordered by type then number.
func (c *Cache) Instances() []*Instance {
	c.mu.RLock()
	out := make([]*Instance, 0, len(c.instances))
	for _, in := range c.instances {
		out = append(out, in)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].sensorType != out[j].sensorType {
			return out[i].sensorType < out[j].sensorType
		}
		return out[i].number < out[j].number
	})
	return out
}

// InstancesOf snapshots the instances of one type, ordered by number.
func (c *Cache) InstancesOf(t models.SensorType) []*Instance {
	c.mu.RLock()
	out := make([]*Instance, 0, 4)
	for key, in := range c.instances {
		if key.t == t {
			out = append(out, in)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].number < out[j].number })
	return out
}

// Metric fetches one metric value, virtual stat names included.
func (c *Cache) Metric(t models.SensorType, n int, field string) (MetricValue, bool) {
	in, ok := c.Instance(t, n)
	if !ok {
		return MetricValue{}, false
	}
	return in.Metric(field)
}

// Range fetches history points for one field within [start, end).
func (c *Cache) Range(t models.SensorType, n int, field string, start, end time.Time) []history.Point {
	in, ok := c.Instance(t, n)
	if !ok {
		return nil
	}
	return in.Range(field, start, end)
}

// Stats fetches session aggregates for one field.
func (c *Cache) Stats(t models.SensorType, n int, field string) (history.Stats, bool) {
	in, ok := c.Instance(t, n)
	if !ok {
		return history.Stats{}, false
	}
	return in.Stats(field)
}

// ReEnrich recomputes display enrichment for every metric of the category,
// after a unit switch. Readings and history are untouched.
func (c *Cache) ReEnrich(cat units.Category) {
	for _, in := range c.Instances() {
		in.reEnrich(cat)
	}
}

// SetThresholds replaces the alarm configuration for one field of one
// instance. The instance is created if needed so configuration can precede
// data.
func (c *Cache) SetThresholds(t models.SensorType, n int, field string, th alarm.Thresholds) error {
	if err := th.Validate(); err != nil {
		return err
	}
	if _, ok := LookupField(t, field); !ok {
		return fmt.Errorf("sensor: %s has no field %q", t, field)
	}
	in := c.getOrCreate(t, n)
	in.setThresholds(field, th)
	return nil
}

// SetDefaultThresholds updates the defaults applied to future instances of
// the type and pushes the change to existing ones.
func (c *Cache) SetDefaultThresholds(t models.SensorType, field string, th alarm.Thresholds) error {
	if err := th.Validate(); err != nil {
		return err
	}
	if _, ok := LookupField(t, field); !ok {
		return fmt.Errorf("sensor: %s has no field %q", t, field)
	}

	c.mu.Lock()
	fields, ok := c.defaults[t]
	if !ok {
		fields = make(map[string]alarm.Thresholds)
		c.defaults[t] = fields
	}
	fields[field] = th
	c.mu.Unlock()

	for _, in := range c.InstancesOf(t) {
		in.setThresholds(field, th)
	}
	return nil
}

// Prune ages out history across all instances.
func (c *Cache) Prune(now time.Time) {
	for _, in := range c.Instances() {
		in.prune(now)
	}
}

// MarkStale flags an instance as inactive without deleting its data.
func (c *Cache) MarkStale(t models.SensorType, n int, stale bool) {
	if in, ok := c.Instance(t, n); ok {
		in.setStale(stale)
	}
}

// AlarmTargets implements alarm.Source across every instance.
func (c *Cache) AlarmTargets() []alarm.Target {
	var out []alarm.Target
	for _, in := range c.Instances() {
		out = append(out, in.alarmTargets()...)
	}
	return out
}
