package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Batch metrics
	BatchRunsTotal        *prometheus.CounterVec
	BatchDuration         prometheus.Histogram
	BatchTenantsEvaluated prometheus.Counter
	BatchTenantErrors     *prometheus.CounterVec
	BatchIncomplete       prometheus.Counter

	// Lifecycle metrics
	TransitionsTotal   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	DispatchTotal      *prometheus.CounterVec

	// Invoice metrics
	InvoicesGeneratedTotal *prometheus.CounterVec
	InvoicesMarkedLate     prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		BatchRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teambilling_batch_runs_total",
				Help: "Daily evaluation runs by outcome",
			},
			[]string{"outcome"},
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "teambilling_batch_duration_seconds",
				Help:    "Duration of a daily evaluation run",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
			},
		),
		BatchTenantsEvaluated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "teambilling_batch_tenants_evaluated_total",
				Help: "Tenants evaluated by daily runs",
			},
		),
		BatchTenantErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teambilling_batch_tenant_errors_total",
				Help: "Per-tenant failures during daily runs",
			},
			[]string{"stage"},
		),
		BatchIncomplete: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "teambilling_batch_incomplete_tenants_total",
				Help: "Tenants left unevaluated when a run hit its deadline",
			},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teambilling_state_transitions_total",
				Help: "Tenant access state transitions",
			},
			[]string{"from", "to"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teambilling_notifications_total",
				Help: "Notifications persisted by type",
			},
			[]string{"type"},
		),
		DispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teambilling_dispatch_total",
				Help: "Delivery attempts by channel and result",
			},
			[]string{"channel", "result"},
		),
		InvoicesGeneratedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teambilling_invoices_generated_total",
				Help: "Invoices created by status",
			},
			[]string{"status"},
		),
		InvoicesMarkedLate: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "teambilling_invoices_marked_late_total",
				Help: "Invoices moved from PENDING to LATE",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "teambilling_http_requests_total",
				Help: "Total number of admin API requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "teambilling_http_request_duration_seconds",
				Help:    "Admin API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		m.BatchRunsTotal,
		m.BatchDuration,
		m.BatchTenantsEvaluated,
		m.BatchTenantErrors,
		m.BatchIncomplete,
		m.TransitionsTotal,
		m.NotificationsTotal,
		m.DispatchTotal,
		m.InvoicesGeneratedTotal,
		m.InvoicesMarkedLate,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

func (m *Metrics) RecordBatch(duration time.Duration, evaluated, incomplete int, complete bool) {
	if m == nil {
		return
	}
	outcome := "complete"
	if !complete {
		outcome = "incomplete"
	}
	m.BatchRunsTotal.WithLabelValues(outcome).Inc()
	m.BatchDuration.Observe(duration.Seconds())
	m.BatchTenantsEvaluated.Add(float64(evaluated))
	m.BatchIncomplete.Add(float64(incomplete))
}

func (m *Metrics) RecordTenantError(stage string) {
	if m == nil {
		return
	}
	m.BatchTenantErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordNotification(notificationType string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(notificationType).Inc()
}

func (m *Metrics) RecordDispatch(channel string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.DispatchTotal.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) RecordInvoice(status string) {
	if m == nil {
		return
	}
	m.InvoicesGeneratedTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordMarkedLate(n int64) {
	if m == nil {
		return
	}
	m.InvoicesMarkedLate.Add(float64(n))
}

// responseWriter captures the status code for the request counter
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware records request counts and latency. routeName maps a request to a low
// cardinality label, usually the matched route template.
func HTTPMiddleware(m *Metrics, routeName func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			route := routeName(r)
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the registry in the Prometheus text format
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
