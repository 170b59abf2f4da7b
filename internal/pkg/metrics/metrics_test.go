package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersExported(t *testing.T) {
	m := New()
	m.AIStreams.WithLabelValues("gemini", "completed").Inc()
	m.AIStreams.WithLabelValues("gemini", "completed").Inc()
	m.HTTPRequests.WithLabelValues("/wiki/tree", "GET", "200").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AIStreams.WithLabelValues("gemini", "completed")))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `wiki_ai_streams_total{provider="gemini",state="completed"} 2`)
	assert.Contains(t, w.Body.String(), `wiki_http_requests_total{method="GET",route="/wiki/tree",status="200"} 1`)
}
