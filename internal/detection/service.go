package detection

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/sensor"
)

// Store is the slice of the sensor cache the service reads and flags.
type Store interface {
	Instances() []*sensor.Instance
	Instance(t models.SensorType, n int) (*sensor.Instance, bool)
	MarkStale(t models.SensorType, n int, stale bool)
}

// DetectedInstance is the projection consumers see: the widget binding plus
// the current values of its required fields.
type DetectedInstance struct {
	Widget     string                        `json:"widget"`
	Sensor     models.SensorType             `json:"sensor_type"`
	Instance   int                           `json:"instance"`
	Name       string                        `json:"name"`
	Fields     map[string]sensor.MetricValue `json:"fields"`
	LastUpdate time.Time                     `json:"last_update"`
}

type detectionKey struct {
	widget   string
	sensor   models.SensorType
	instance int
}

// staleSince stays zero while the instance is fresh; the first scan that
// finds a required field stale starts the grace timer.
type detectedState struct {
	name       string
	staleSince time.Time
}

// Service tracks which (widget, instance) pairs are live. Scans are
// incremental: each call emits only the transitions since the previous one.
type Service struct {
	mu            sync.Mutex
	store         Store
	registrations []Registration
	detected      map[detectionKey]*detectedState
	logger        zerolog.Logger
}

func NewService(store Store, registrations []Registration, logger zerolog.Logger) *Service {
	if len(registrations) == 0 {
		registrations = DefaultRegistrations()
	}
	return &Service{
		store:         store,
		registrations: registrations,
		detected:      make(map[detectionKey]*detectedState),
		logger:        logger.With().Str("component", "detection").Logger(),
	}
}

// Scan walks the cache once and reconciles the detected set against it.
// Appearance emits instance.detected immediately; disappearance emits
// exactly one instance.lost, and only after the registration's grace period
// has elapsed with no fresh data.
func (s *Service) Scan(now time.Time) []models.InstanceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []models.InstanceEvent
	for _, in := range s.store.Instances() {
		for _, reg := range s.registrations {
			if reg.Sensor != in.Type() {
				continue
			}
			key := detectionKey{reg.Widget, in.Type(), in.Number()}
			fresh := satisfied(in, reg, now)
			state, isDetected := s.detected[key]

			switch {
			case fresh && !isDetected:
				s.detected[key] = &detectedState{name: in.Name()}
				ev := models.NewInstanceEvent(models.EventInstanceDetected, reg.Widget, in.Type(), in.Number(), in.Name(), now)
				events = append(events, ev)
				s.logger.Info().
					Str("widget", reg.Widget).
					Str("sensor_type", string(in.Type())).
					Int("instance", in.Number()).
					Msg("Instance detected")

			case fresh && isDetected:
				if !state.staleSince.IsZero() {
					state.staleSince = time.Time{}
					s.store.MarkStale(in.Type(), in.Number(), false)
				}

			case !fresh && isDetected:
				if state.staleSince.IsZero() {
					state.staleSince = now
					s.store.MarkStale(in.Type(), in.Number(), true)
				} else if now.Sub(state.staleSince) >= reg.RemoveGrace {
					delete(s.detected, key)
					ev := models.NewInstanceEvent(models.EventInstanceLost, reg.Widget, in.Type(), in.Number(), state.name, now)
					events = append(events, ev)
					s.logger.Info().
						Str("widget", reg.Widget).
						Str("sensor_type", string(in.Type())).
						Int("instance", in.Number()).
						Dur("stale_for", now.Sub(state.staleSince)).
						Msg("Instance lost")
				}
			}
		}
	}
	return events
}

// Rescan recomputes through the same reconciliation as the periodic scans,
// so its detected set always matches the incrementally maintained one.
func (s *Service) Rescan(now time.Time) ([]models.InstanceEvent, []DetectedInstance) {
	events := s.Scan(now)
	return events, s.Detected()
}

// Detected returns the current projections sorted by widget then instance.
func (s *Service) Detected() []DetectedInstance {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DetectedInstance, 0, len(s.detected))
	for key, state := range s.detected {
		in, ok := s.store.Instance(key.sensor, key.instance)
		if !ok {
			continue
		}
		reg, ok := s.registrationFor(key.widget)
		if !ok {
			continue
		}
		fields := make(map[string]sensor.MetricValue, len(reg.Required))
		for _, field := range reg.Required {
			if mv, ok := in.Metric(field); ok {
				fields[field] = mv
			}
		}
		out = append(out, DetectedInstance{
			Widget:     key.widget,
			Sensor:     key.sensor,
			Instance:   key.instance,
			Name:       state.name,
			Fields:     fields,
			LastUpdate: in.LastUpdate(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Widget != out[j].Widget {
			return out[i].Widget < out[j].Widget
		}
		return out[i].Instance < out[j].Instance
	})
	return out
}

func (s *Service) registrationFor(widget string) (Registration, bool) {
	for _, reg := range s.registrations {
		if reg.Widget == widget {
			return reg, true
		}
	}
	return Registration{}, false
}

// satisfied reports whether every required field has a value fresher than
// the registration's staleness window.
func satisfied(in *sensor.Instance, reg Registration, now time.Time) bool {
	for _, field := range reg.Required {
		mv, ok := in.Metric(field)
		if !ok {
			return false
		}
		if now.Sub(mv.Timestamp) > reg.StaleAfter {
			return false
		}
	}
	return true
}
