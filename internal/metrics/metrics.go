// Package metrics provides Prometheus metrics for the versioning engine
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors updated by the engine
type Metrics struct {
	// Lifecycle decisions, labelled by entity type and event
	VersionsCreatedTotal *prometheus.CounterVec
	VersionsSkippedTotal *prometheus.CounterVec
	VersionsTrimmedTotal *prometheus.CounterVec
	VersionsPurgedTotal  *prometheus.CounterVec

	// Read path
	ReconstructionsTotal   *prometheus.CounterVec
	ReconstructionDuration *prometheus.HistogramVec
	DiffsTotal             prometheus.Counter

	// Storage
	DbOperationsTotal   *prometheus.CounterVec
	DbOperationDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics on the default registerer
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the metrics on reg. A nil reg creates
// unregistered collectors.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.VersionsCreatedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versionable_versions_created_total",
			Help: "Total number of version records appended",
		},
		[]string{"type", "event"},
	)

	m.VersionsSkippedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versionable_versions_skipped_total",
			Help: "Total number of lifecycle events that produced no record",
		},
		[]string{"type", "reason"},
	)

	m.VersionsTrimmedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versionable_versions_trimmed_total",
			Help: "Total number of records removed by retention",
		},
		[]string{"type"},
	)

	m.VersionsPurgedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versionable_versions_purged_total",
			Help: "Total number of records hard-deleted with their entity",
		},
		[]string{"type"},
	)

	m.ReconstructionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versionable_reconstructions_total",
			Help: "Total number of point-in-time reconstructions",
		},
		[]string{"strategy"},
	)

	m.ReconstructionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "versionable_reconstruction_duration_seconds",
			Help:    "Duration of point-in-time reconstructions in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"strategy"},
	)

	m.DiffsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "versionable_diffs_total",
			Help: "Total number of version diffs computed",
		},
	)

	m.DbOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versionable_db_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	m.DbOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "versionable_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	return m
}

// RecordCreated counts an appended record
func (m *Metrics) RecordCreated(entityType, event string) {
	if m == nil {
		return
	}
	m.VersionsCreatedTotal.WithLabelValues(entityType, event).Inc()
}

// RecordSkipped counts a lifecycle event that produced no record
func (m *Metrics) RecordSkipped(entityType, reason string) {
	if m == nil {
		return
	}
	m.VersionsSkippedTotal.WithLabelValues(entityType, reason).Inc()
}

// RecordTrimmed counts records removed by retention
func (m *Metrics) RecordTrimmed(entityType string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.VersionsTrimmedTotal.WithLabelValues(entityType).Add(float64(n))
}

// RecordPurged counts records removed with a force-deleted entity
func (m *Metrics) RecordPurged(entityType string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.VersionsPurgedTotal.WithLabelValues(entityType).Add(float64(n))
}

// RecordReconstruction records a reconstruction and its duration
func (m *Metrics) RecordReconstruction(strategy string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ReconstructionsTotal.WithLabelValues(strategy).Inc()
	m.ReconstructionDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordDiff counts a computed diff
func (m *Metrics) RecordDiff() {
	if m == nil {
		return
	}
	m.DiffsTotal.Inc()
}

// RecordDbOperation records a database operation
func (m *Metrics) RecordDbOperation(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.DbOperationsTotal.WithLabelValues(operation, status).Inc()
	m.DbOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
