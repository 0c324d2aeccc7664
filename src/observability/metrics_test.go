package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetBrokerSessions(3)
		m.RecordBrokerCall("ok", time.Second)
		m.RecordTransportError("ConnectionTimeout")
		m.RecordReactSession("Completed")
		m.RecordReactStep("call")
	})
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestRecorders(t *testing.T) {
	m := NewMetrics()
	m.SetBrokerSessions(2)
	m.RecordBrokerCall("ok", 10*time.Millisecond)
	m.RecordBrokerCall("", time.Millisecond)
	m.RecordTransportError("ConnectionBroken")
	m.RecordReactSession("Completed")
	m.RecordReactStep("finish")

	body := scrape(t, m)
	assert.Contains(t, body, "rail_broker_sessions 2")
	assert.Contains(t, body, `rail_broker_calls_total{outcome="ok"} 1`)
	assert.Contains(t, body, `rail_broker_calls_total{outcome="unknown"} 1`)
	assert.Contains(t, body, `rail_broker_call_duration_seconds_count{outcome="ok"} 1`)
	assert.Contains(t, body, `rail_transport_errors_total{kind="ConnectionBroken"} 1`)
	assert.Contains(t, body, `rail_react_sessions_total{status="Completed"} 1`)
	assert.Contains(t, body, `rail_react_steps_total{action="finish"} 1`)
}

func TestNilHandlerIsNotFound(t *testing.T) {
	var m *Metrics
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
