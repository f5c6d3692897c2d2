// Package metrics exposes Prometheus instrumentation for the upload
// coordinator and finalizer. Every Observe/Record method is safe on a nil
// receiver, so an unconfigured *Metrics is zero overhead.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the gateway reports. A nil
// *Metrics is safe to call methods on; every method is a no-op.
type Metrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	chunkBytes        prometheus.Histogram
	finalizeTotal     *prometheus.CounterVec
	finalizeDuration  prometheus.Histogram
	finalizerPending  prometheus.GaugeFunc
	lockContention    *prometheus.CounterVec
}

// PendingFunc reports the finalizer's current queue depth, bound to
// finalizer.Pool.Pending by the caller.
type PendingFunc func() float64

// New registers every collector against reg and returns a *Metrics bound
// to them. pending is polled by the finalizer_pending gauge.
func New(reg *prometheus.Registry, pending PendingFunc) *Metrics {
	m := &Metrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploadgw_requests_total",
				Help: "Total upload gateway operations by name and outcome",
			},
			[]string{"operation", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uploadgw_request_duration_milliseconds",
				Help:    "Duration of upload gateway operations in milliseconds",
				Buckets: []float64{5, 10, 50, 100, 500, 1000, 5000, 10000},
			},
			[]string{"operation"},
		),
		chunkBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "uploadgw_chunk_bytes",
				Help: "Distribution of chunk sizes received",
				Buckets: []float64{
					65536, 1048576, 5242880, 10485760, 52428800, 104857600,
				},
			},
		),
		finalizeTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploadgw_finalize_total",
				Help: "Total finalize runs by terminal status",
			},
			[]string{"status"},
		),
		finalizeDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "uploadgw_finalize_duration_milliseconds",
				Help:    "Duration of the full finalize pipeline in milliseconds",
				Buckets: []float64{100, 500, 1000, 5000, 10000, 30000, 60000, 300000},
			},
		),
		lockContention: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploadgw_lock_contention_total",
				Help: "Total lock acquisitions rejected due to contention",
			},
			[]string{"scope"},
		),
	}
	if pending != nil {
		m.finalizerPending = promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "uploadgw_finalizer_pending",
				Help: "Current number of jobs queued for finalization",
			},
			func() float64 { return pending() },
		)
	}
	return m
}

// ObserveRequest records the outcome and latency of one coordinator
// operation (pre_upload, upload_chunks, on_success, get_status).
func (m *Metrics) ObserveRequest(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.requestsTotal.WithLabelValues(operation, status).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))
}

// RecordChunkBytes records one chunk's size.
func (m *Metrics) RecordChunkBytes(bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.chunkBytes.Observe(float64(bytes))
}

// ObserveFinalize records one finalize run's terminal status and duration.
func (m *Metrics) ObserveFinalize(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.finalizeTotal.WithLabelValues(status).Inc()
	m.finalizeDuration.Observe(float64(duration.Milliseconds()))
}

// RecordLockContention records a rejected lock acquisition for scope
// ("pre_upload" or "folder_create").
func (m *Metrics) RecordLockContention(scope string) {
	if m == nil {
		return
	}
	m.lockContention.WithLabelValues(scope).Inc()
}
