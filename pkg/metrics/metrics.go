package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics methods are safe to call on a nil receiver.
type Metrics struct {
	distanceCalls  *prometheus.CounterVec
	geocodeCalls   *prometheus.CounterVec
	quotaUsed      prometheus.Gauge
	routeBuild     prometheus.Histogram
	ordersResolved *prometheus.CounterVec
	routesClosed   *prometheus.CounterVec
}

func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		distanceCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "distance_calls_total",
			Help:      "Distance estimations by result.",
		}, []string{"result"}),
		geocodeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_calls_total",
			Help:      "Geocode lookups by result.",
		}, []string{"result"}),
		quotaUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "distance_quota_used",
			Help:      "Distance calls counted against today's quota.",
		}),
		routeBuild: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_build_seconds",
			Help:      "Time spent building a route.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		ordersResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_resolved_total",
			Help:      "Orders resolved by outcome.",
		}, []string{"outcome"}),
		routesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routes_closed_total",
			Help:      "Routes ended, by completion.",
		}, []string{"completed"}),
	}
	reg.MustRegister(m.distanceCalls, m.geocodeCalls, m.quotaUsed, m.routeBuild, m.ordersResolved, m.routesClosed)
	return m
}

func (m *Metrics) DistanceCall(result string) {
	if m == nil {
		return
	}
	m.distanceCalls.WithLabelValues(result).Inc()
}

func (m *Metrics) GeocodeCall(found bool) {
	if m == nil {
		return
	}
	result := "resolved"
	if !found {
		result = "unresolved"
	}
	m.geocodeCalls.WithLabelValues(result).Inc()
}

func (m *Metrics) QuotaUsed(n int64) {
	if m == nil {
		return
	}
	m.quotaUsed.Set(float64(n))
}

func (m *Metrics) RouteBuilt(d time.Duration) {
	if m == nil {
		return
	}
	m.routeBuild.Observe(d.Seconds())
}

func (m *Metrics) OrderResolved(outcome string) {
	if m == nil {
		return
	}
	m.ordersResolved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RouteClosed(completed bool) {
	if m == nil {
		return
	}
	label := "false"
	if completed {
		label = "true"
	}
	m.routesClosed.WithLabelValues(label).Inc()
}
