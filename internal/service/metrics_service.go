package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/rtms-ops-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the workflow
// engine: HTTP traffic plus domain counters for alerts, approvals and
// notifications.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	alertsCreated      prometheus.Counter
	alertsDeduplicated prometheus.Counter
	approvalDecisions  *prometheus.CounterVec
	notificationsSent  prometheus.Counter
	notificationsLost  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	alertsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alerts_created_total",
		Help: "Total alert records opened from telemetry",
	})

	alertsDeduplicated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alerts_deduplicated_total",
		Help: "Total alert records suppressed by the dedup window",
	})

	approvalDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "approval_decisions_total",
		Help: "Total recorded approval stage decisions",
	}, []string{"workflow", "stage", "decision"})

	notificationsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total outbound notification emails delivered",
	})

	notificationsLost := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Total outbound notification emails that failed delivery",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal,
		alertsCreated, alertsDeduplicated, approvalDecisions,
		notificationsSent, notificationsLost, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		alertsCreated:      alertsCreated,
		alertsDeduplicated: alertsDeduplicated,
		approvalDecisions:  approvalDecisions,
		notificationsSent:  notificationsSent,
		notificationsLost:  notificationsLost,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordAlertCreated counts one opened alert record.
func (m *MetricsService) RecordAlertCreated() {
	if m == nil {
		return
	}
	m.alertsCreated.Inc()
}

// RecordAlertDeduplicated counts one suppressed alert record.
func (m *MetricsService) RecordAlertDeduplicated() {
	if m == nil {
		return
	}
	m.alertsDeduplicated.Inc()
}

// RecordApprovalDecision counts one stage decision.
func (m *MetricsService) RecordApprovalDecision(workflow, stage string, decision models.ApprovalDecision) {
	if m == nil {
		return
	}
	m.approvalDecisions.WithLabelValues(workflow, stage, string(decision)).Inc()
}

// RecordNotification counts one outbound email attempt.
func (m *MetricsService) RecordNotification(delivered bool) {
	if m == nil {
		return
	}
	if delivered {
		m.notificationsSent.Inc()
	} else {
		m.notificationsLost.Inc()
	}
}
