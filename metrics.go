package bttconf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "bttconf"

// Reload 结果标签
const (
	reloadSuccess = "success"
	reloadFailure = "failure"
)

// storeMetrics 每个 Store 一份；registerer 为 nil 时不注册。
type storeMetrics struct {
	reloadsTotal     *prometheus.CounterVec
	parseErrorsTotal *prometheus.CounterVec
	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter
	snapshotKeys     prometheus.Gauge
	generation       prometheus.Gauge
}

func newStoreMetrics(reg prometheus.Registerer) *storeMetrics {
	f := promauto.With(reg)
	m := &storeMetrics{
		reloadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reloads_total",
				Help:      "Total number of raw source loads by result",
			},
			[]string{"result"},
		),
		parseErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "parse_errors_total",
				Help:      "Total number of malformed values by accessor kind",
			},
			[]string{"kind"},
		),
		cacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_hits_total",
			Help:      "Total number of typed cache hits",
		}),
		cacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cache_misses_total",
			Help:      "Total number of typed cache misses",
		}),
		snapshotKeys: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_keys",
			Help:      "Number of keys in the current snapshot",
		}),
		generation: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_generation",
			Help:      "Generation of the current snapshot",
		}),
	}
	m.reloadsTotal.WithLabelValues(reloadSuccess)
	m.reloadsTotal.WithLabelValues(reloadFailure)
	return m
}
