package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordCheck(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordCheck("growbiz", "employees", "limit", ResultAllowed)
	m.RecordCheck("growbiz", "employees", "limit", ResultAllowed)
	m.RecordCheck("growbiz", "", "", ResultDenied)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checks.WithLabelValues("growbiz", "employees", "limit", ResultAllowed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checks.WithLabelValues("growbiz", "unknown", "unknown", ResultDenied)))
}

func TestMetrics_RecordConsumeAndActivation(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordConsume("growbiz", "invoices", ConsumeExceeded)
	m.RecordActivation("growbiz", ActivationCreated)
	m.RecordProviderEvent("growbiz", "past_due")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.consumes.WithLabelValues("growbiz", "invoices", ConsumeExceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activations.WithLabelValues("growbiz", ActivationCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerEvents.WithLabelValues("growbiz", "past_due")))
}

func TestMetrics_RegisterTwiceOnSameRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.NoError(t, err)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCheck("a", "b", "c", ResultAllowed)
		m.RecordConsume("a", "b", ConsumeApplied)
		m.RecordActivation("a", ActivationFailed)
		m.RecordProviderEvent("a", "active")
	})
}
