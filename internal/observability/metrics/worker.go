package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	sweepTotal    *prometheus.CounterVec
	sweepDuration *prometheus.HistogramVec
	sweepInFlight prometheus.Gauge
	sweptRecords  prometheus.Counter
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	sweepTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "sweep_total",
			Help:      "Total stale-record sweeps by status.",
		},
		[]string{"service", "status"},
	)
	sweepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "sweep_duration_seconds",
			Help:      "Stale-record sweep duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	sweepInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "sweep_in_flight",
			Help:      "Number of sweeps currently running.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	sweptRecords := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "swept_records_total",
			Help:      "Total records failed by the sweeper.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(sweepTotal, sweepDuration, sweepInFlight, sweptRecords)

	return &WorkerMetrics{
		service:       service,
		registry:      registry,
		sweepTotal:    sweepTotal,
		sweepDuration: sweepDuration,
		sweepInFlight: sweepInFlight,
		sweptRecords:  sweptRecords,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartSweep() {
	m.sweepInFlight.Inc()
}

func (m *WorkerMetrics) FinishSweep(duration time.Duration, swept int, err error) {
	m.sweepInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.sweepTotal.WithLabelValues(m.service, status).Inc()
	m.sweepDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
	if swept > 0 {
		m.sweptRecords.Add(float64(swept))
	}
}
