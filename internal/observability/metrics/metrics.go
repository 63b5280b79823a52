package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeadOpsMetrics exposes counters/histograms for assignment and outcome flows.
type LeadOpsMetrics struct {
	assignmentsTotal  *prometheus.CounterVec
	autoAssignBatch   prometheus.Histogram
	autoAssignLatency prometheus.Histogram
	outcomesTotal     *prometheus.CounterVec
	revenueTotal      prometheus.Counter
}

func NewLeadOpsMetrics(reg prometheus.Registerer) *LeadOpsMetrics {
	m := &LeadOpsMetrics{
		assignmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadops",
			Subsystem: "assignment",
			Name:      "appointments_assigned_total",
			Help:      "Appointments assigned to closers",
		}, []string{"source"}),
		autoAssignBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "leadops",
			Subsystem: "assignment",
			Name:      "auto_assign_batch_size",
			Help:      "Appointments assigned per auto-assign run",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		autoAssignLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "leadops",
			Subsystem: "assignment",
			Name:      "auto_assign_duration_seconds",
			Help:      "Duration of auto-assign runs",
			Buckets:   prometheus.DefBuckets,
		}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadops",
			Subsystem: "outcomes",
			Name:      "recorded_total",
			Help:      "Call outcomes recorded",
		}, []string{"outcome", "actor"}),
		revenueTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadops",
			Subsystem: "outcomes",
			Name:      "converted_revenue_total",
			Help:      "Sum of sale values recorded on conversions",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.assignmentsTotal, m.autoAssignBatch, m.autoAssignLatency, m.outcomesTotal, m.revenueTotal)
	return m
}

func (m *LeadOpsMetrics) ObserveAssignments(source string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.assignmentsTotal.WithLabelValues(source).Add(float64(count))
}

func (m *LeadOpsMetrics) ObserveAutoAssign(count int, seconds float64) {
	if m == nil {
		return
	}
	m.autoAssignBatch.Observe(float64(count))
	m.autoAssignLatency.Observe(seconds)
}

func (m *LeadOpsMetrics) ObserveOutcome(outcome, actor string, saleValue float64) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(outcome, actor).Inc()
	if saleValue > 0 {
		m.revenueTotal.Add(saleValue)
	}
}
