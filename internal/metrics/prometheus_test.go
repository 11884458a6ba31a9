package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()

	m.RecordSessionOpened()
	m.RecordSessionOpened()
	m.RecordSessionClosed()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveSessions))

	m.RecordBargeIn("manual")
	m.RecordBargeIn("voice")
	m.RecordBargeIn("voice")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.BargeIns.WithLabelValues("voice")))

	m.RecordTranscriptDropped("echo")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EchoDrops))

	m.RecordGeneration("complete", 2*time.Second)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Generations.WithLabelValues("complete")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordSessionOpened()
	m.RecordBargeIn("manual")
	m.RecordStrokeBatch(true)
	m.RecordGeneration("complete", time.Second)
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics()
	m.RecordUtterance()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "xtutor_utterances_total 1")
}
