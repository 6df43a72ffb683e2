package observability

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountsPerEvent(t *testing.T) {
	req := require.New(t)
	m := NewMetrics(prometheus.Labels{"instance": "test"})

	m.Received("new-message")
	m.Received("new-message")
	m.Rejected("user-typing")
	m.Dropped("send-message")
	m.SetConnected(true)

	req.Equal(2.0, testutil.ToFloat64(m.received.WithLabelValues("new-message")))
	req.Equal(1.0, testutil.ToFloat64(m.rejected.WithLabelValues("user-typing")))
	req.Equal(1.0, testutil.ToFloat64(m.dropped.WithLabelValues("send-message")))
	req.Equal(1.0, testutil.ToFloat64(m.connected))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.Received("x")
		m.Sent("x")
		m.TaskRun()
		m.WorkerRestarted("engine")
		m.SetConnected(false)
		m.QueueDepth("engine", 3)
	})
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	req := require.New(t)
	registry := prometheus.NewRegistry()
	m := NewMetrics(nil)
	m.Register(registry)
	m.Sent("user-online")

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	req.NoError(err)
	req.Contains(string(body), `chat_sync_intents_sent_total{event="user-online"} 1`)
}
