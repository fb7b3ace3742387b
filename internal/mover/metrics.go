package mover

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 迁移过程的 Prometheus 指标
type Metrics struct {
	runs       *prometheus.CounterVec
	movedItems *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	running    prometheus.Gauge
}

// MustNewMetrics 在 reg 上注册指标，重复注册时复用已有的采集器
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediastore",
			Subsystem: "mover",
			Name:      "runs_total",
			Help:      "Number of storage migrations by source, target and result.",
		}, []string{"source", "target", "result"}),
		movedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediastore",
			Subsystem: "mover",
			Name:      "moved_items_total",
			Help:      "Number of media items handed over between providers.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mediastore",
			Subsystem: "mover",
			Name:      "run_duration_seconds",
			Help:      "Duration of storage migrations.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"result"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mediastore",
			Subsystem: "mover",
			Name:      "running",
			Help:      "Whether a storage migration is currently running.",
		}),
	}

	m.runs = register(reg, m.runs)
	m.movedItems = register(reg, m.movedItems)
	m.duration = register(reg, m.duration)
	m.running = register(reg, m.running)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) observeRun(source, target string, succeeded bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if succeeded {
		result = "success"
	}
	m.runs.WithLabelValues(source, target, result).Inc()
	m.duration.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (m *Metrics) incMoved(kind string) {
	if m == nil {
		return
	}
	m.movedItems.WithLabelValues(kind).Inc()
}

func (m *Metrics) setRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.running.Set(1)
		return
	}
	m.running.Set(0)
}
