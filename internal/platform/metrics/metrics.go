package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registration outcomes.
const (
	OutcomeCreated       = "created"
	OutcomeInvalid       = "invalid_input"
	OutcomeConflict      = "conflict"
	OutcomeStorageFailed = "storage_failed"
	OutcomeEmailFailed   = "email_failed"
	OutcomeSMSFailed     = "sms_failed"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Registrations        *prometheus.CounterVec
	NotificationDuration *prometheus.HistogramVec
	RequestDuration      *prometheus.HistogramVec
	ListCache            *prometheus.CounterVec
}

// NewWithRegisterer registers on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registro_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),

		NotificationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registro_notification_duration_seconds",
			Help:    "Duration of outbound notification calls by channel and result",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"channel", "result"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registro_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route pattern and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		ListCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registro_list_cache_total",
			Help: "List cache lookups by result",
		}, []string{"result"}), // hit, miss, error
	}
}

// IncrementRegistration records the outcome of one registration attempt.
func (m *Metrics) IncrementRegistration(outcome string) {
	if m != nil {
		m.Registrations.WithLabelValues(outcome).Inc()
	}
}

// ObserveNotification records the latency of one provider call.
func (m *Metrics) ObserveNotification(channel string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.NotificationDuration.WithLabelValues(channel, result).Observe(d.Seconds())
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
	}
}

// IncrementListCache records a list cache lookup result.
func (m *Metrics) IncrementListCache(result string) {
	if m != nil {
		m.ListCache.WithLabelValues(result).Inc()
	}
}
