// Copyright 2026 The Ortho Authors
// This file is part of ortho.

// Package config resolves the memory and concurrency budgets the
// engine starts with (spec.md §5): total system memory via
// github.com/pbnjay/memory, the logical core count via
// github.com/shirou/gopsutil/v4,
// and the resulting split expressed as
// github.com/c2h5oh/datasize byte sizes.
package config

import (
	"context"
	"runtime"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pbnjay/memory"
	"github.com/shirou/gopsutil/v4/cpu"
)

// SeenStoreVariant selects which SeenStore implementation backs a run
// (spec.md §9: "Dynamic dispatch ... selection at startup via a
// configuration tag").
type SeenStoreVariant int

const (
	VariantGenerationalExact SeenStoreVariant = iota
	VariantBloomApproximate
)

// Budgets is the 60/20/10/10 memory split from spec.md §5.
type Budgets struct {
	SeenStoreBytes  datasize.ByteSize
	InternerBytes   datasize.ByteSize
	WorkQueueBytes  datasize.ByteSize
	WorkerScratch   datasize.ByteSize
	TotalConsidered datasize.ByteSize
}

// Config is the engine's resolved startup configuration.
type Config struct {
	Budgets Budgets

	// WorkerCount sizes the batch-parallel pool; defaults to hardware
	// concurrency (spec.md §5).
	WorkerCount int

	// BatchSize is the snapshot-of-queued-orthos size distributed across
	// worker goroutines per synchronization round (spec.md §5).
	BatchSize int

	// QueueCapacity is the WorkQueue's in-memory ring size B (spec.md
	// §4.4: target 50k-100k at large scale).
	QueueCapacity int

	// SeenStoreVariant picks the dedup implementation.
	SeenStoreVariant SeenStoreVariant

	// MergeFanIn clamps the generational SeenStore's k-way merge fan-in
	// to [8,128] (spec.md §4.3).
	MergeFanIn int

	// ReadBufferBytes records the 64 KiB buffer size of spec.md §4.3.
	// The engine does not pass it to the seenstore package, whose run
	// writers use a fixed 64 KiB buffer and whose run readers
	// memory-map the files.
	ReadBufferBytes int

	// SortBudgetFraction is ~0.7 per spec.md §4.3: the fraction of the
	// SeenStore's RAM allotment spent on in-memory sort buffers before a
	// generation is flushed.
	SortBudgetFraction float64
}

// Resolve queries system memory and CPU, and derives the default
// Config. Any field can be overridden by the caller afterward.
func Resolve() Config {
	total := datasize.ByteSize(memory.TotalMemory())
	if total == 0 {
		// memory.TotalMemory returns 0 when it cannot determine the
		// system's memory (e.g. inside some sandboxes); fall back to a
		// conservative fixed budget rather than dividing by zero.
		total = 4 * datasize.GB
	}

	budgets := Budgets{
		SeenStoreBytes:  datasize.ByteSize(float64(total) * 0.60),
		InternerBytes:   datasize.ByteSize(float64(total) * 0.20),
		WorkQueueBytes:  datasize.ByteSize(float64(total) * 0.10),
		WorkerScratch:   datasize.ByteSize(float64(total) * 0.10),
		TotalConsidered: total,
	}

	workers := cpuCount()

	return Config{
		Budgets:            budgets,
		WorkerCount:        workers,
		BatchSize:          8 * workers,
		QueueCapacity:      65536,
		SeenStoreVariant:   VariantGenerationalExact,
		MergeFanIn:         32,
		ReadBufferBytes:    64 * 1024,
		SortBudgetFraction: 0.7,
	}
}

// cpuCount prefers gopsutil's logical-core count (which accounts for
// cgroup/container CPU limits on some platforms) and falls back to
// runtime.NumCPU when the probe fails.
func cpuCount() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	counts, err := cpu.CountsWithContext(ctx, true)
	if err != nil || counts <= 0 {
		return runtime.NumCPU()
	}
	return counts
}

// RAMBudgetIDs converts a SeenStore byte budget into an approximate
// landing-set capacity (8 bytes/id plus the sort-budget fraction).
func (c Config) RAMBudgetIDs() int {
	usable := float64(c.Budgets.SeenStoreBytes) * c.SortBudgetFraction
	n := int(usable / 8)
	if n <= 0 {
		n = 1_000_000
	}
	return n
}
