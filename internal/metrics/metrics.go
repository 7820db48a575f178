// Package metrics exposes Prometheus counters for the monitoring loop.
// Only outcomes are counted; measured values are not exported.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "envmon"

const (
	CycleCompleted = "completed"
	CycleSkipped   = "skipped"
)

type Metrics struct {
	registry *prometheus.Registry

	Cycles        *prometheus.CounterVec
	Alerts        *prometheus.CounterVec
	StepPanics    *prometheus.CounterVec
	ADCFaults     prometheus.Counter
	StoreErrors   prometheus.Counter
	ForwardErrors prometheus.Counter
	LastCycle     prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Monitoring cycles by outcome.",
		}, []string{"outcome"}),
		Alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alert dispatcher decisions for above-threshold readings.",
		}, []string{"decision"}),
		StepPanics: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_panics_total",
			Help:      "Recovered panics per cycle step.",
		}, []string{"step"}),
		ADCFaults: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adc_faults_total",
			Help:      "Cycles whose air quality read fell back to the fault sentinel.",
		}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed store inserts.",
		}),
		ForwardErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forward_errors_total",
			Help:      "Failed telemetry pushes.",
		}),
		LastCycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last cycle finished.",
		}),
	}
}

func (m *Metrics) ObserveCycle(outcome string, at time.Time) {
	m.Cycles.WithLabelValues(outcome).Inc()
	m.LastCycle.Set(float64(at.Unix()))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
