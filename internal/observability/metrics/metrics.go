package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking engine.
type BookingMetrics struct {
	reserveTotal        *prometheus.CounterVec
	cancelTotal         *prometheus.CounterVec
	closeVisitTotal     *prometheus.CounterVec
	availabilityLatency prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		reserveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "reserve_total",
			Help:      "Total slot reservation attempts",
		}, []string{"result"}),
		cancelTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "cancel_total",
			Help:      "Total appointment cancellations",
		}, []string{"result"}),
		closeVisitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "close_visit_total",
			Help:      "Total visit closures",
		}, []string{"result", "followup"}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "availability_latency_seconds",
			Help:      "Latency of availability compilation",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reserveTotal, m.cancelTotal, m.closeVisitTotal, m.availabilityLatency)
	return m
}

func (m *BookingMetrics) ObserveReserve(result string) {
	if m == nil {
		return
	}
	m.reserveTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveCancel(result string) {
	if m == nil {
		return
	}
	m.cancelTotal.WithLabelValues(result).Inc()
}

func (m *BookingMetrics) ObserveCloseVisit(result string, followupScheduled bool) {
	if m == nil {
		return
	}
	label := "none"
	if followupScheduled {
		label = "scheduled"
	}
	m.closeVisitTotal.WithLabelValues(result, label).Inc()
}

func (m *BookingMetrics) ObserveAvailabilityLatency(seconds float64) {
	if m == nil {
		return
	}
	m.availabilityLatency.Observe(seconds)
}
