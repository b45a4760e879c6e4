// Copyright 2026 The Ortho Authors
// This file is part of ortho.

// Package metrics exposes the engine's Prometheus instrumentation
// (spec.md §5 "Memory budgets" / §2 control flow). No HTTP exporter is
// wired here — the core has no server surface (spec.md §1) — callers
// that want /metrics register promhttp.Handler() against Registry
// themselves.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is the registry every metric below is registered against.
var Registry = prometheus.NewRegistry()

var (
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ortho_queue_depth",
		Help: "Number of orthos currently resident in the WorkQueue's in-memory ring.",
	})

	SeenFreshTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ortho_seen_fresh_total",
		Help: "Total SeenStore.Observe calls that returned fresh.",
	})

	SeenSeenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ortho_seen_seen_total",
		Help: "Total SeenStore.Observe calls that returned seen.",
	})

	WorkerBatchSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ortho_worker_batch_seconds",
		Help:    "Wall-clock duration of one batch-parallel worker round.",
		Buckets: prometheus.DefBuckets,
	})

	FrontierSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ortho_frontier_size",
		Help: "Total lead orthos currently held in the Frontier.",
	})

	BloomEstimatedFPRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ortho_bloom_estimated_fp_rate",
		Help: "Declared false-positive rate of the bloom-backed SeenStore variant; 0 when the exact variant is active.",
	})
)

func init() {
	Registry.MustRegister(
		QueueDepth,
		SeenFreshTotal,
		SeenSeenTotal,
		WorkerBatchSeconds,
		FrontierSize,
		BloomEstimatedFPRate,
	)
}
