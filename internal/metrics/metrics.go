// Package metrics exposes Prometheus counters and histograms for the
// ingest, query, and rebuild pipelines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestTotal counts document ingests by outcome (ok, invalid, locked, rejected, storage_error).
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_ingest_total",
			Help: "Total number of document ingest attempts by outcome",
		},
		[]string{"outcome"},
	)

	// IngestDuration is the latency of a full ingest pipeline run.
	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docvault_ingest_duration_seconds",
			Help:    "Ingest pipeline latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	// QueryTotal counts search executions by outcome.
	QueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_query_total",
			Help: "Total number of search executions by outcome",
		},
		[]string{"outcome"},
	)

	// QueryDuration is the latency of planning plus executing a search.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docvault_query_duration_seconds",
			Help:    "Search execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	// IndexTablesActive tracks the number of live per-field index tables.
	IndexTablesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docvault_index_tables_active",
			Help: "Number of active per-field index tables",
		},
	)

	// RebuildDuration is the latency of a full collection rebuild.
	RebuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docvault_rebuild_duration_seconds",
			Help:    "Index rebuild latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	// LogMessages counts emitted log lines by severity.
	LogMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_log_messages_total",
			Help: "Total log lines emitted by level",
		},
		[]string{"level"},
	)

	// PoolWaitDuration is the time spent blocked acquiring a pooled connection.
	PoolWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docvault_pool_wait_seconds",
			Help:    "Time spent waiting to acquire a pooled connection",
			Buckets: prometheus.DefBuckets,
		},
	)
)
