package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveReserve("ok")
	m.ObserveReserve("ok")
	m.ObserveReserve("conflict")
	m.ObserveCancel("ok")
	m.ObserveCloseVisit("ok", true)

	assert.InDelta(t, 2, testutil.ToFloat64(m.reserveTotal.WithLabelValues("ok")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.reserveTotal.WithLabelValues("conflict")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cancelTotal.WithLabelValues("ok")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.closeVisitTotal.WithLabelValues("ok", "scheduled")), 0.001)
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveReserve("ok")
	m.ObserveCancel("ok")
	m.ObserveCloseVisit("ok", false)
	m.ObserveAvailabilityLatency(0.1)
}
