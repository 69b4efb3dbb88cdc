// Package metrics implements engine.Metrics with Prometheus collectors,
// following the promauto registration style used throughout the example
// corpus's metrics packages.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors holds every Prometheus metric the Document Engine reports
// through, registered exactly once per process.
type Collectors struct {
	SessionsJoinedTotal    prometheus.Counter
	SessionsLeftTotal      prometheus.Counter
	OperationsAdmittedTotal  prometheus.Counter
	OperationsAbsorbedTotal  prometheus.Counter
	OperationsRejectedTotal  prometheus.Counter
	FlushDurationSeconds     prometheus.Histogram
	FlushBatchSizeHistogram  prometheus.Histogram
	StoreSaveFailuresTotal   prometheus.Counter
}

var (
	instance *Collectors
	once     sync.Once
)

// New registers (once per process) and returns the shared Collectors.
func New(registry prometheus.Registerer) *Collectors {
	once.Do(func() {
		factory := promauto.With(registry)
		instance = &Collectors{
			SessionsJoinedTotal: factory.NewCounter(prometheus.CounterOpts{
				Name: "syncpad_sessions_joined_total",
				Help: "Total number of sessions that joined a document.",
			}),
			SessionsLeftTotal: factory.NewCounter(prometheus.CounterOpts{
				Name: "syncpad_sessions_left_total",
				Help: "Total number of sessions that left a document.",
			}),
			OperationsAdmittedTotal: factory.NewCounter(prometheus.CounterOpts{
				Name: "syncpad_operations_admitted_total",
				Help: "Total number of operations accepted into a document's pending queue.",
			}),
			OperationsAbsorbedTotal: factory.NewCounter(prometheus.CounterOpts{
				Name: "syncpad_operations_absorbed_total",
				Help: "Total number of operations absorbed by the immediate-echo transform.",
			}),
			OperationsRejectedTotal: factory.NewCounter(prometheus.CounterOpts{
				Name: "syncpad_operations_rejected_total",
				Help: "Total number of operations rejected by validation.",
			}),
			FlushDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
				Name:    "syncpad_flush_duration_seconds",
				Help:    "Duration of a document engine's debounced flush cycle.",
				Buckets: prometheus.DefBuckets,
			}),
			FlushBatchSizeHistogram: factory.NewHistogram(prometheus.HistogramOpts{
				Name:    "syncpad_flush_batch_size",
				Help:    "Number of operations merged per flush.",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
			}),
			StoreSaveFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
				Name: "syncpad_store_save_failures_total",
				Help: "Total number of document store save failures.",
			}),
		}
	})
	return instance
}

// SessionJoined implements engine.Metrics.
func (c *Collectors) SessionJoined(documentID string) { c.SessionsJoinedTotal.Inc() }

// SessionLeft implements engine.Metrics.
func (c *Collectors) SessionLeft(documentID string) { c.SessionsLeftTotal.Inc() }

// OperationAdmitted implements engine.Metrics.
func (c *Collectors) OperationAdmitted(documentID string) { c.OperationsAdmittedTotal.Inc() }

// OperationAbsorbed implements engine.Metrics.
func (c *Collectors) OperationAbsorbed(documentID string) { c.OperationsAbsorbedTotal.Inc() }

// OperationRejected implements engine.Metrics.
func (c *Collectors) OperationRejected(documentID string) {
	c.OperationsRejectedTotal.Inc()
}

// FlushDuration implements engine.Metrics.
func (c *Collectors) FlushDuration(documentID string, d time.Duration) {
	c.FlushDurationSeconds.Observe(d.Seconds())
}

// FlushBatchSize implements engine.Metrics.
func (c *Collectors) FlushBatchSize(documentID string, n int) {
	c.FlushBatchSizeHistogram.Observe(float64(n))
}

// StoreSaveFailure implements engine.Metrics.
func (c *Collectors) StoreSaveFailure(documentID string) { c.StoreSaveFailuresTotal.Inc() }
