package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordBatch(time.Second, 1, 0, true)
		m.RecordTransition("ACTIVE", "OVERDUE")
		m.RecordDispatch("email", false)
		m.RecordInvoice("PENDING")
		m.RecordMarkedLate(2)
	})
}

func TestRecorders(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordBatch(2*time.Second, 5, 1, false)
	m.RecordTransition("ACTIVE", "OVERDUE")
	m.RecordTransition("ACTIVE", "OVERDUE")
	m.RecordDispatch("push", true)
	m.RecordInvoice("EXEMPT")
	m.RecordMarkedLate(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchRunsTotal.WithLabelValues("incomplete")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.BatchTenantsEvaluated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchIncomplete))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("ACTIVE", "OVERDUE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchTotal.WithLabelValues("push", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvoicesGeneratedTotal.WithLabelValues("EXEMPT")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.InvoicesMarkedLate))
}

func TestHTTPMiddlewareAndHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := HTTPMiddleware(m, func(*http.Request) string { return "/brew" })(inner)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/brew", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/brew", "418")))

	srv := httptest.NewServer(Handler(registry))
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	assert.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "teambilling_http_requests_total"))
}
