package health

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pliefoog/helmwatch/internal/metrics"
	"github.com/pliefoog/helmwatch/internal/pipeline"
)

type fakeStats struct{ stats pipeline.Stats }

func (f fakeStats) Stats() pipeline.Stats { return f.stats }

func newTestServer() *Server {
	source := fakeStats{stats: pipeline.Stats{
		QueueDepth:  3,
		Subscribers: 1,
		Instances:   4,
	}}
	met := metrics.New()
	met.RecordFrame(metrics.ProtocolNMEA0183)
	return NewServer("helmwatchd", "0", source, met.Registry(), zerolog.Nop())
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "helmwatchd", resp.Service)
	assert.NotZero(t, resp.Timestamp)
	assert.Equal(t, 3, resp.Pipeline.QueueDepth)
	assert.Equal(t, 4, resp.Pipeline.Instances)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "helmwatch_ingest_frames_received_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCollectSystem(t *testing.T) {
	s, err := CollectSystem()
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.GreaterOrEqual(t, s.CPUUsagePercent, 0.0)
}
