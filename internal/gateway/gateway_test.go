package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pliefoog/helmwatch/internal/alarm"
	"github.com/pliefoog/helmwatch/internal/detection"
	"github.com/pliefoog/helmwatch/internal/history"
	"github.com/pliefoog/helmwatch/internal/models"
	"github.com/pliefoog/helmwatch/internal/sensor"
	"github.com/pliefoog/helmwatch/internal/units"
)

func newTestGateway(now time.Time) (*Gateway, *sensor.Cache, *detection.Service) {
	cache := sensor.NewCache(units.NewRegistry(), history.DefaultConfig(), alarm.Defaults(), zerolog.Nop())
	svc := detection.NewService(cache, nil, zerolog.Nop())
	g := &Gateway{
		store:    cache,
		detector: svc,
		logger:   zerolog.Nop(),
		now:      func() time.Time { return now },
	}
	return g, cache, svc
}

func applyDepth(c *sensor.Cache, depth float64, ts time.Time) {
	c.Apply(models.SensorUpdate{
		Type:      models.SensorDepth,
		Instance:  0,
		Fields:    map[string]models.Reading{"depth": models.Num(depth)},
		Timestamp: ts,
	})
}

func TestHandleMetric_ReturnsEnrichedValue(t *testing.T) {
	now := time.Now()
	g, cache, _ := newTestGateway(now)
	applyDepth(cache, 3.8, now.Add(-2*time.Second))

	raw, err := g.HandleMetric([]byte(`{"sensor_type":"depth","instance":0,"field":"depth"}`))
	require.NoError(t, err)

	var resp MetricResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, models.SensorDepth, resp.SensorType)
	assert.Equal(t, "3.8 m", resp.Value.Display.WithUnit)
	assert.Equal(t, models.AlarmNormal, resp.AlarmState)
	assert.InDelta(t, 2.0, resp.AgeSeconds, 0.001)
	assert.False(t, resp.Stale)
}

func TestHandleMetric_VirtualStatField(t *testing.T) {
	now := time.Now()
	g, cache, _ := newTestGateway(now)
	applyDepth(cache, 2.0, now.Add(-3*time.Second))
	applyDepth(cache, 5.0, now.Add(-2*time.Second))
	applyDepth(cache, 3.0, now.Add(-time.Second))

	raw, err := g.HandleMetric([]byte(`{"sensor_type":"depth","instance":0,"field":"depth.max"}`))
	require.NoError(t, err)

	var resp MetricResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, 5.0, resp.Value.Reading.Float())
}

func TestHandleMetric_Errors(t *testing.T) {
	now := time.Now()
	g, cache, _ := newTestGateway(now)
	applyDepth(cache, 3.8, now)

	_, err := g.HandleMetric([]byte(`{"sensor_type":"battery","instance":0,"field":"voltage"}`))
	assert.Error(t, err)

	_, err = g.HandleMetric([]byte(`{"sensor_type":"depth","instance":0,"field":"salinity"}`))
	assert.Error(t, err)

	_, err = g.HandleMetric([]byte(`{broken`))
	assert.Error(t, err)
}

func TestHandleHistory_WindowBoundsAndStats(t *testing.T) {
	now := time.Now()
	g, cache, _ := newTestGateway(now)
	applyDepth(cache, 1.0, now.Add(-10*time.Second))
	applyDepth(cache, 9.0, now.Add(-5*time.Second))
	applyDepth(cache, 5.0, now.Add(-time.Second))

	raw, err := g.HandleHistory([]byte(`{"sensor_type":"depth","instance":0,"field":"depth","window_seconds":7}`))
	require.NoError(t, err)

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Len(t, resp.Points, 2)
	assert.Equal(t, 9.0, resp.Points[0].Value)
	assert.Equal(t, 5.0, resp.Points[1].Value)
	assert.Equal(t, 2, resp.Stats.Count)
	assert.Equal(t, 5.0, resp.Stats.Min)
	assert.Equal(t, 9.0, resp.Stats.Max)
	assert.InDelta(t, 7.0, resp.Stats.Mean, 1e-9)
}

func TestHandleHistory_DefaultWindow(t *testing.T) {
	now := time.Now()
	g, cache, _ := newTestGateway(now)
	applyDepth(cache, 3.8, now.Add(-time.Minute))
	applyDepth(cache, 4.0, now.Add(-20*time.Minute)) // outside the default window

	raw, err := g.HandleHistory([]byte(`{"sensor_type":"depth","instance":0,"field":"depth"}`))
	require.NoError(t, err)

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Len(t, resp.Points, 1)
	assert.Equal(t, 3.8, resp.Points[0].Value)
}

func TestHandleInstances_ReflectsDetectedSet(t *testing.T) {
	now := time.Now()
	g, cache, svc := newTestGateway(now)
	applyDepth(cache, 3.8, now)
	svc.Scan(now)

	raw, err := g.HandleInstances(nil)
	require.NoError(t, err)

	var resp InstancesResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "depth", resp.Instances[0].Widget)
	assert.Equal(t, models.SensorDepth, resp.Instances[0].Sensor)
}

func TestHandleSchema_FullAndFiltered(t *testing.T) {
	g, _, _ := newTestGateway(time.Now())

	raw, err := g.HandleSchema(nil)
	require.NoError(t, err)
	var full map[models.SensorType]sensor.Schema
	require.NoError(t, json.Unmarshal(raw, &full))
	assert.Contains(t, full, models.SensorDepth)
	assert.Contains(t, full[models.SensorDepth], "depth")

	raw, err = g.HandleSchema([]byte(`{"sensor_type":"battery"}`))
	require.NoError(t, err)
	var filtered map[models.SensorType]sensor.Schema
	require.NoError(t, json.Unmarshal(raw, &filtered))
	assert.Len(t, filtered, 1)
	assert.Contains(t, filtered, models.SensorBattery)

	_, err = g.HandleSchema([]byte(`{"sensor_type":"submarine"}`))
	assert.Error(t, err)
}
