// Package prometheus contains the Prometheus-backed implementations of the
// metrics interfaces.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kydras/kydrastore/pkg/metrics"
)

// storageMetrics is the Prometheus implementation of metrics.StorageMetrics.
type storageMetrics struct {
	writesTotal       prometheus.Counter
	writeBytes        prometheus.Counter
	writeReplicas     prometheus.Histogram
	writeDuration     prometheus.Histogram
	readsTotal        prometheus.Counter
	readBytes         prometheus.Counter
	healsTotal        prometheus.Counter
	readDuration      prometheus.Histogram
	rebalanceCopies   prometheus.Counter
	rebalanceEvicts   prometheus.Counter
	rebalanceDuration prometheus.Histogram
	errorsTotal       *prometheus.CounterVec
}

// NewStorageMetrics creates a Prometheus-backed StorageMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called).
func NewStorageMetrics() metrics.StorageMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopStorageMetrics()
	}

	reg := metrics.GetRegistry()

	durationBuckets := []float64{
		1,     // 1ms
		10,    // 10ms
		100,   // 100ms
		1000,  // 1s
		10000, // 10s
	}

	return &storageMetrics{
		writesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "kydras_storage_writes_total",
			Help: "Total number of successful replicated writes",
		}),
		writeBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "kydras_storage_write_bytes_total",
			Help: "Total bytes written across all replicas",
		}),
		writeReplicas: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "kydras_storage_write_replicas",
			Help:    "Replica count per write",
			Buckets: []float64{1, 2, 3, 4, 8},
		}),
		writeDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "kydras_storage_write_duration_milliseconds",
			Help:    "Duration of two-phase writes in milliseconds",
			Buckets: durationBuckets,
		}),
		readsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "kydras_storage_reads_total",
			Help: "Total number of successful reads",
		}),
		readBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "kydras_storage_read_bytes_total",
			Help: "Total bytes served by reads",
		}),
		healsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "kydras_storage_heals_total",
			Help: "Total replicas repaired by read-time self-healing",
		}),
		readDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "kydras_storage_read_duration_milliseconds",
			Help:    "Duration of reads including healing in milliseconds",
			Buckets: durationBuckets,
		}),
		rebalanceCopies: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "kydras_storage_rebalance_copies_total",
			Help: "Total replicas created by rebalancing",
		}),
		rebalanceEvicts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "kydras_storage_rebalance_evictions_total",
			Help: "Total replicas evicted by rebalancing",
		}),
		rebalanceDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "kydras_storage_rebalance_duration_milliseconds",
			Help:    "Duration of rebalance passes in milliseconds",
			Buckets: []float64{10, 100, 1000, 10000, 60000},
		}),
		errorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "kydras_storage_errors_total",
			Help: "Total failed operations by operation and error kind",
		}, []string{"op", "kind"}),
	}
}

func (m *storageMetrics) RecordWrite(bytes int64, replicas int, duration time.Duration) {
	m.writesTotal.Inc()
	m.writeBytes.Add(float64(bytes) * float64(replicas))
	m.writeReplicas.Observe(float64(replicas))
	m.writeDuration.Observe(float64(duration.Milliseconds()))
}

func (m *storageMetrics) RecordRead(bytes int64, healed int, duration time.Duration) {
	m.readsTotal.Inc()
	m.readBytes.Add(float64(bytes))
	m.healsTotal.Add(float64(healed))
	m.readDuration.Observe(float64(duration.Milliseconds()))
}

func (m *storageMetrics) RecordRebalance(copied, evicted int, duration time.Duration) {
	m.rebalanceCopies.Add(float64(copied))
	m.rebalanceEvicts.Add(float64(evicted))
	m.rebalanceDuration.Observe(float64(duration.Milliseconds()))
}

func (m *storageMetrics) RecordError(op, kind string) {
	m.errorsTotal.WithLabelValues(op, kind).Inc()
}
