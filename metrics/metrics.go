// Package metrics exposes prometheus collectors shared by the store,
// builder and exporters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every repolex collector. The CLI renders it through
// system status; embedders may expose it over HTTP themselves.
var Registry = prometheus.NewRegistry()

var (
	// TriplesWritten counts triples written, by write operation (upsert or append).
	TriplesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repolex",
		Name:      "triples_written_total",
		Help:      "Triples written to the store, by operation.",
	}, []string{"op"})

	// GraphsDropped counts graph drops.
	GraphsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "repolex",
		Name:      "graphs_dropped_total",
		Help:      "Named graphs dropped from the store.",
	})

	// QueryDuration observes read-query latency.
	QueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "repolex",
		Name:      "query_duration_seconds",
		Help:      "SPARQL query execution time.",
		Buckets:   prometheus.DefBuckets,
	})

	// ParseFailures counts source files skipped for parse errors.
	ParseFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "repolex",
		Name:      "parse_failures_total",
		Help:      "Source files skipped because parsing failed.",
	})

	// BuildsCompleted counts finished graph builds by outcome.
	BuildsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repolex",
		Name:      "builds_completed_total",
		Help:      "Graph builds finished, by outcome.",
	}, []string{"outcome"})

	// ExportRecords counts records emitted by exporters.
	ExportRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repolex",
		Name:      "export_records_total",
		Help:      "Records written by exporters, by format.",
	}, []string{"format"})
)

func init() {
	Registry.MustRegister(
		TriplesWritten,
		GraphsDropped,
		QueryDuration,
		ParseFailures,
		BuildsCompleted,
		ExportRecords,
	)
}
