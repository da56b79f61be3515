package metrics

import "github.com/prometheus/client_golang/prometheus"

// ToolMetrics exposes counters/histograms for the tool dispatch surface.
type ToolMetrics struct {
	invocationsTotal *prometheus.CounterVec
	retriesTotal     *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	bookingConflicts prometheus.Counter
}

func NewToolMetrics(reg prometheus.Registerer) *ToolMetrics {
	m := &ToolMetrics{
		invocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voice",
			Subsystem: "tools",
			Name:      "invocations_total",
			Help:      "Total tool invocations by outcome",
		}, []string{"tool", "status"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voice",
			Subsystem: "tools",
			Name:      "storage_retries_total",
			Help:      "Retries of retryable storage failures",
		}, []string{"tool"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voice",
			Subsystem: "tools",
			Name:      "duration_seconds",
			Help:      "Tool execution latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		bookingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voice",
			Subsystem: "scheduling",
			Name:      "slot_conflicts_total",
			Help:      "Bookings rejected because the slot was already taken",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.invocationsTotal, m.retriesTotal, m.duration, m.bookingConflicts)
	return m
}

func (m *ToolMetrics) ObserveInvocation(tool, status string) {
	if m == nil {
		return
	}
	m.invocationsTotal.WithLabelValues(tool, status).Inc()
}

func (m *ToolMetrics) ObserveRetry(tool string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(tool).Inc()
}

func (m *ToolMetrics) ObserveDuration(tool string, seconds float64) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(tool).Observe(seconds)
}

func (m *ToolMetrics) ObserveSlotConflict() {
	if m == nil {
		return
	}
	m.bookingConflicts.Inc()
}
