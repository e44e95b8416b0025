package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusExporter(t *testing.T) {
	exporter := NewPrometheusExporter(Config{})

	t.Run("ObserveDecision", func(t *testing.T) {
		exporter.ObserveDecision("ml", "career_navigator", 0.9, 2*time.Millisecond)
		exporter.ObserveDecision("ml", "career_navigator", 0.7, time.Millisecond)
		exporter.ObserveDecision("none", "", 0.1, time.Millisecond)

		assert.Equal(t, 2.0, testutil.ToFloat64(exporter.decisions.WithLabelValues("ml", "career_navigator")))
		assert.Equal(t, 1.0, testutil.ToFloat64(exporter.decisions.WithLabelValues("none", "none")))
	})

	t.Run("ObserveAbstention", func(t *testing.T) {
		exporter.ObserveAbstention("self_learning", "below_threshold")
		assert.Equal(t, 1.0, testutil.ToFloat64(exporter.abstentions.WithLabelValues("self_learning", "below_threshold")))
	})

	t.Run("ObserveFeedback", func(t *testing.T) {
		exporter.ObserveFeedback("explicit", "ok")
		exporter.ObserveFeedback("explicit", "unknown")
		assert.Equal(t, 1.0, testutil.ToFloat64(exporter.feedback.WithLabelValues("explicit", "ok")))
	})

	t.Run("ObservePatterns", func(t *testing.T) {
		exporter.ObservePatterns(12, 4)
		assert.Equal(t, 12.0, testutil.ToFloat64(exporter.cachedPatterns))
		assert.Equal(t, 4.0, testutil.ToFloat64(exporter.maturePatterns))
	})

	t.Run("RecordHTTPRequest", func(t *testing.T) {
		exporter.RecordHTTPRequest("/api/v1/route", http.StatusOK, 3*time.Millisecond)
		assert.Equal(t, 1.0, testutil.ToFloat64(exporter.httpRequests.WithLabelValues("/api/v1/route", "200")))
	})
}

func TestPrometheusExporterHandler(t *testing.T) {
	exporter := NewPrometheusExporter(DefaultConfig())
	exporter.ObserveDecision("traditional", "uniroom", 0.4, time.Millisecond)
	exporter.ObserveFeedback("reaction", "ok")
	exporter.ObservePatterns(5, 0)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	w := httptest.NewRecorder()
	exporter.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, name := range []string{
		"agentrouter_routing_decisions_total",
		"agentrouter_routing_route_latency_seconds",
		"agentrouter_routing_feedback_total",
		"agentrouter_routing_cached_patterns",
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(body, name), name)
	}
}

func BenchmarkObserveDecision(b *testing.B) {
	exporter := NewPrometheusExporter(Config{})
	for i := 0; i < b.N; i++ {
		exporter.ObserveDecision("ml", "uninav", 0.5, time.Millisecond)
	}
}
