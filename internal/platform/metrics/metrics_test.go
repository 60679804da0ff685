package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.IncrementRegistration(OutcomeCreated)
	m.IncrementRegistration(OutcomeCreated)
	m.IncrementRegistration(OutcomeSMSFailed)
	m.IncrementListCache("hit")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Registrations.WithLabelValues(OutcomeCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Registrations.WithLabelValues(OutcomeSMSFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListCache.WithLabelValues("hit")))
}

func TestHistograms(t *testing.T) {
	m := NewWithRegisterer(prometheus.NewRegistry())

	m.ObserveNotification("email", false, 20*time.Millisecond)
	m.ObserveRequest("POST", "/employees", "201", 5*time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(m.NotificationDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementRegistration(OutcomeCreated)
		m.ObserveNotification("sms", true, time.Millisecond)
		m.ObserveRequest("GET", "/health", "200", time.Millisecond)
		m.IncrementListCache("miss")
	})
}
