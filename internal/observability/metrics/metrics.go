package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for the booking engine and the
// conversation surface around it.
type EngineMetrics struct {
	bookingsTotal *prometheus.CounterVec
	matchTotal    *prometheus.CounterVec
	oracleLatency prometheus.Histogram
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"status"}),
		matchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "specialty",
			Name:      "match_total",
			Help:      "Specialty match attempts by outcome",
		}, []string{"outcome"}),
		oracleLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "assistant",
			Name:      "oracle_latency_seconds",
			Help:      "Latency of intent oracle round trips",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.matchTotal, m.oracleLatency)
	return m
}

// ObserveBooking records a booking attempt outcome
// (confirmed, conflict, not_found, invalid, unavailable, error).
func (m *EngineMetrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}

// ObserveMatch records a specialty match outcome (exact, fuzzy, no_match).
func (m *EngineMetrics) ObserveMatch(outcome string) {
	if m == nil {
		return
	}
	m.matchTotal.WithLabelValues(outcome).Inc()
}

// ObserveOracleLatency records one oracle round trip.
func (m *EngineMetrics) ObserveOracleLatency(seconds float64) {
	if m == nil {
		return
	}
	m.oracleLatency.Observe(seconds)
}
