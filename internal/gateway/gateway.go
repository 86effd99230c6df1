// Package gateway answers read queries over NATS request/reply. Handlers
// are pure request-bytes to response-bytes functions so they can be tested
// without a broker; Start only wires them to subjects.
package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/pliefoog/helmwatch/internal/detection"
	"github.com/pliefoog/helmwatch/internal/history"
	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/sensor"
)

const (
	SubjectQueryMetric    = "telemetry.query.metric"
	SubjectQueryHistory   = "telemetry.query.history"
	SubjectQueryInstances = "telemetry.query.instances"
	SubjectQuerySchema    = "telemetry.query.schema"
)

// defaultWindow bounds history queries that omit window_seconds.
const defaultWindow = 15 * time.Minute

// MetricStore is the slice of the sensor cache the gateway reads. The cache
// implements it.
type MetricStore interface {
	Instance(t models.SensorType, n int) (*sensor.Instance, bool)
}

// InstanceLister reports the detected set. The detection service implements
// it.
type InstanceLister interface {
	Detected() []detection.DetectedInstance
}

type MetricRequest struct {
	SensorType models.SensorType `json:"sensor_type"`
	Instance   int               `json:"instance"`
	Field      string            `json:"field"`
}

type MetricResponse struct {
	SensorType models.SensorType  `json:"sensor_type"`
	Instance   int                `json:"instance"`
	Field      string             `json:"field"`
	Value      sensor.MetricValue `json:"value"`
	AlarmState models.AlarmState  `json:"alarm_state"`
	AgeSeconds float64            `json:"age_seconds"`
	Stale      bool               `json:"stale"`
}

type HistoryRequest struct {
	SensorType    models.SensorType `json:"sensor_type"`
	Instance      int               `json:"instance"`
	Field         string            `json:"field"`
	WindowSeconds float64           `json:"window_seconds,omitempty"`
}

type HistoryResponse struct {
	SensorType models.SensorType `json:"sensor_type"`
	Instance   int               `json:"instance"`
	Field      string            `json:"field"`
	Points     []history.Point   `json:"points"`
	Stats      history.Stats     `json:"stats"`
}

type SchemaRequest struct {
	SensorType models.SensorType `json:"sensor_type,omitempty"`
}

type InstancesResponse struct {
	Instances []detection.DetectedInstance `json:"instances"`
	Count     int                          `json:"count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Gateway serves the query subjects from a metric store and the detection
// service.
type Gateway struct {
	conn     *nats.Conn
	store    MetricStore
	detector InstanceLister
	subs     []*nats.Subscription
	logger   zerolog.Logger
	now      func() time.Time
}

func New(natsURL string, store MetricStore, detector InstanceLister, logger zerolog.Logger) (*Gateway, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("gateway: connect %s: %w", natsURL, err)
	}

	logger = logger.With().Str("component", "gateway").Logger()
	logger.Info().Str("url", natsURL).Msg("Gateway connected to NATS")

	return &Gateway{
		conn:     conn,
		store:    store,
		detector: detector,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start subscribes every query subject.
func (g *Gateway) Start() error {
	routes := []struct {
		subject string
		handle  func([]byte) ([]byte, error)
	}{
		{SubjectQueryMetric, g.HandleMetric},
		{SubjectQueryHistory, g.HandleHistory},
		{SubjectQueryInstances, g.HandleInstances},
		{SubjectQuerySchema, g.HandleSchema},
	}
	for _, r := range routes {
		handle := r.handle
		subject := r.subject
		sub, err := g.conn.Subscribe(subject, func(msg *nats.Msg) {
			g.respond(msg, handle)
		})
		if err != nil {
			return fmt.Errorf("gateway: subscribe %s: %w", subject, err)
		}
		g.subs = append(g.subs, sub)
	}
	g.logger.Info().Msg("Query API listening")
	return nil
}

func (g *Gateway) respond(msg *nats.Msg, handle func([]byte) ([]byte, error)) {
	data, err := handle(msg.Data)
	if err != nil {
		g.logger.Debug().Err(err).Str("subject", msg.Subject).Msg("Query failed")
		data, _ = json.Marshal(ErrorResponse{Error: err.Error()})
	}
	if err := msg.Respond(data); err != nil {
		g.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("Failed to respond")
	}
}

// HandleMetric answers telemetry.query.metric: the current value of one
// field, display-enriched, with its alarm state and age.
func (g *Gateway) HandleMetric(req []byte) ([]byte, error) {
	var q MetricRequest
	if err := json.Unmarshal(req, &q); err != nil {
		return nil, fmt.Errorf("gateway: bad metric request: %w", err)
	}
	in, ok := g.store.Instance(q.SensorType, q.Instance)
	if !ok {
		return nil, fmt.Errorf("gateway: no %s instance %d", q.SensorType, q.Instance)
	}
	mv, ok := in.Metric(q.Field)
	if !ok {
		return nil, fmt.Errorf("gateway: %s instance %d has no field %q", q.SensorType, q.Instance, q.Field)
	}
	return json.Marshal(MetricResponse{
		SensorType: q.SensorType,
		Instance:   q.Instance,
		Field:      q.Field,
		Value:      mv,
		AlarmState: in.AlarmState(q.Field),
		AgeSeconds: g.now().Sub(mv.Timestamp).Seconds(),
		Stale:      in.Stale(),
	})
}

// HandleHistory answers telemetry.query.history: the points inside the
// requested window plus min/max/mean over exactly those points.
func (g *Gateway) HandleHistory(req []byte) ([]byte, error) {
	var q HistoryRequest
	if err := json.Unmarshal(req, &q); err != nil {
		return nil, fmt.Errorf("gateway: bad history request: %w", err)
	}
	in, ok := g.store.Instance(q.SensorType, q.Instance)
	if !ok {
		return nil, fmt.Errorf("gateway: no %s instance %d", q.SensorType, q.Instance)
	}

	window := defaultWindow
	if q.WindowSeconds > 0 {
		window = time.Duration(q.WindowSeconds * float64(time.Second))
	}
	end := g.now()
	points := in.Range(q.Field, end.Add(-window), end)

	return json.Marshal(HistoryResponse{
		SensorType: q.SensorType,
		Instance:   q.Instance,
		Field:      q.Field,
		Points:     points,
		Stats:      history.RangeStats(points),
	})
}

// HandleInstances answers telemetry.query.instances with the detected set.
func (g *Gateway) HandleInstances([]byte) ([]byte, error) {
	detected := g.detector.Detected()
	return json.Marshal(InstancesResponse{Instances: detected, Count: len(detected)})
}

// HandleSchema answers telemetry.query.schema: the full field catalog, or
// one sensor type's when the request names it.
func (g *Gateway) HandleSchema(req []byte) ([]byte, error) {
	var q SchemaRequest
	if len(req) > 0 {
		if err := json.Unmarshal(req, &q); err != nil {
			return nil, fmt.Errorf("gateway: bad schema request: %w", err)
		}
	}
	if q.SensorType == "" {
		return json.Marshal(sensor.Schemas())
	}
	s, ok := sensor.SchemaFor(q.SensorType)
	if !ok {
		return nil, fmt.Errorf("gateway: unknown sensor type %q", q.SensorType)
	}
	return json.Marshal(map[models.SensorType]sensor.Schema{q.SensorType: s})
}

func (g *Gateway) Close() {
	for _, sub := range g.subs {
		sub.Unsubscribe()
	}
	if g.conn != nil {
		g.conn.Close()
		g.logger.Info().Msg("Gateway disconnected from NATS")
	}
}

func (g *Gateway) IsConnected() bool {
	return g.conn != nil && g.conn.IsConnected()
}
