package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors for the ad server
type Metrics struct {
	registry *prometheus.Registry

	// Counter metrics, labelled by kind (view or click)
	CountersRecorded *prometheus.CounterVec
	CountersDropped  *prometheus.CounterVec
	CountersFlushed  *prometheus.CounterVec
	FlushFailures    prometheus.Counter

	// Selection metrics
	Selections      *prometheus.CounterVec
	SelectionErrors *prometheus.CounterVec

	// Rotation streams
	ActiveStreams prometheus.Gauge
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		CountersRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comichub",
			Name:      "ad_counter_recorded_total",
			Help:      "Views and clicks accepted by the accumulator",
		}, []string{"kind"}),
		CountersDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comichub",
			Name:      "ad_counter_dropped_total",
			Help:      "Views and clicks lost to backend failures",
		}, []string{"kind"}),
		CountersFlushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comichub",
			Name:      "ad_counter_flushed_total",
			Help:      "Buffered increments written to the store",
		}, []string{"kind"}),
		FlushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "comichub",
			Name:      "ad_counter_flush_failures_total",
			Help:      "Buffered increments restored to Redis after a failed write",
		}),
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comichub",
			Name:      "ad_selections_total",
			Help:      "Eligible ad selections served",
		}, []string{"position"}),
		SelectionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "comichub",
			Name:      "ad_selection_errors_total",
			Help:      "Selections that failed on the store",
		}, []string{"position"}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "comichub",
			Name:      "ad_rotation_streams",
			Help:      "Open rotation websocket sessions",
		}),
	}

	reg.MustRegister(
		m.CountersRecorded, m.CountersDropped, m.CountersFlushed, m.FlushFailures,
		m.Selections, m.SelectionErrors, m.ActiveStreams,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
