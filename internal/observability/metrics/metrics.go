package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "dental"

// BookingMetrics exposes counters/histograms for the booking core. Every
// method is safe on a nil receiver so components can run without metrics.
type BookingMetrics struct {
	resolutions  *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	lifecycle    *prometheus.CounterVec
	pmsLatency   *prometheus.HistogramVec
	interactions *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "resolutions_total",
			Help:      "Provider resolutions by matching tier",
		}, []string{"tier"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Cache lookups by key kind and result",
		}, []string{"kind", "result"}),
		lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Appointment lifecycle operations by outcome",
		}, []string{"operation", "outcome"}),
		pmsLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pms",
			Name:      "request_duration_seconds",
			Help:      "Latency of upstream PMS calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interactions",
			Name:      "logged_total",
			Help:      "Interaction log records by delivery result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.resolutions, m.cacheLookups, m.lifecycle, m.pmsLatency, m.interactions)
	return m
}

func (m *BookingMetrics) ObserveResolution(tier string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(tier).Inc()
}

func (m *BookingMetrics) ObserveCache(kind, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

func (m *BookingMetrics) ObserveLifecycle(operation, outcome string) {
	if m == nil {
		return
	}
	m.lifecycle.WithLabelValues(operation, outcome).Inc()
}

func (m *BookingMetrics) ObservePMSRequest(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.pmsLatency.WithLabelValues(operation, status).Observe(seconds)
}

func (m *BookingMetrics) ObserveInteraction(result string) {
	if m == nil {
		return
	}
	m.interactions.WithLabelValues(result).Inc()
}
