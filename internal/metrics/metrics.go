// Package metrics defines the daemon's Prometheus instrumentation on an
// explicitly constructed registry, so tests and parallel pipelines never
// share collector state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "helmwatch"

// Protocol label values for ingest counters.
const (
	ProtocolNMEA0183 = "nmea0183"
	ProtocolNMEA2000 = "nmea2000"
)

// Metrics carries every collector the pipeline and daemon surfaces touch.
type Metrics struct {
	registry *prometheus.Registry

	FramesReceived    *prometheus.CounterVec
	DecodeFailures    *prometheus.CounterVec
	ReassemblyDrops   *prometheus.CounterVec
	UpdatesApplied    *prometheus.CounterVec
	SchemaMismatches  *prometheus.CounterVec
	AlarmTransitions  *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec
	InstancesDetected prometheus.Gauge
	ApplyDuration     prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "frames_received_total",
				Help:      "Raw payloads offered to the decoders, by protocol.",
			},
			[]string{"protocol"},
		),

		DecodeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "decode_failures_total",
				Help:      "Payloads rejected by the decoders, by protocol and reason.",
			},
			[]string{"protocol", "reason"},
		),

		ReassemblyDrops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "reassembly_drops_total",
				Help:      "Fast-packet assemblies abandoned before completion, by reason.",
			},
			[]string{"reason"},
		),

		UpdatesApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "updates_applied_total",
				Help:      "Sensor updates applied to the cache, by sensor type.",
			},
			[]string{"sensor_type"},
		),

		SchemaMismatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "schema_mismatches_total",
				Help:      "Update fields dropped because the sensor schema does not list them.",
			},
			[]string{"sensor_type"},
		),

		AlarmTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alarm",
				Name:      "transitions_total",
				Help:      "Alarm state transitions, by severity entered.",
			},
			[]string{"severity"},
		),

		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Events emitted to subscribers, by kind.",
			},
			[]string{"kind"},
		),

		InstancesDetected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "detection",
				Name:      "instances",
				Help:      "Currently detected (widget, instance) pairs.",
			},
		),

		ApplyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "apply_duration_seconds",
				Help:      "Time spent applying one sensor update.",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 6),
			},
		),
	}

	m.registry.MustRegister(
		m.FramesReceived,
		m.DecodeFailures,
		m.ReassemblyDrops,
		m.UpdatesApplied,
		m.SchemaMismatches,
		m.AlarmTransitions,
		m.EventsPublished,
		m.InstancesDetected,
		m.ApplyDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) RecordFrame(protocol string) {
	m.FramesReceived.WithLabelValues(protocol).Inc()
}

func (m *Metrics) RecordDecodeFailure(protocol, reason string) {
	m.DecodeFailures.WithLabelValues(protocol, reason).Inc()
}

func (m *Metrics) RecordReassemblyDrop(reason string) {
	m.ReassemblyDrops.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordUpdate(sensorType string) {
	m.UpdatesApplied.WithLabelValues(sensorType).Inc()
}

func (m *Metrics) RecordSchemaMismatch(sensorType string) {
	m.SchemaMismatches.WithLabelValues(sensorType).Inc()
}

func (m *Metrics) RecordAlarmTransition(severity string) {
	m.AlarmTransitions.WithLabelValues(severity).Inc()
}

func (m *Metrics) RecordEvent(kind string) {
	m.EventsPublished.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetInstancesDetected(n int) {
	m.InstancesDetected.Set(float64(n))
}

func (m *Metrics) ObserveApply(seconds float64) {
	m.ApplyDuration.Observe(seconds)
}
