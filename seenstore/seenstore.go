// Copyright 2026 The Ortho Authors
// This file is part of ortho.
//
// ortho is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package seenstore implements identity-based deduplication at scale
// (spec.md §4.3): a sharded-bloom-plus-exact-backstop variant (A) and a
// generational external-sort variant (B), both behind the same Observe
// contract.
package seenstore

import "errors"

// Outcome is the result of Observe for a single id.
type Outcome int

const (
	Fresh Outcome = iota
	Seen
)

// ErrDiskFull is returned when a variant cannot persist further state;
// per spec.md §4.5 this is fatal and the caller must snapshot and abort.
var ErrDiskFull = errors.New("seenstore: disk full")

// SeenStore is the contract every variant satisfies (spec.md §4.3):
// "accept billions of insertions with bounded RAM, return seen for every
// id previously observed in the current run, and permit fresh
// false-positives only if the implementation declares itself
// approximate."
type SeenStore interface {
	// Observe records id and reports whether this is the first time it
	// has been seen in the current run.
	Observe(id uint64) (Outcome, error)

	// ApproximateFalsePositiveRate reports the variant's declared false
	// positive rate and whether the variant is approximate at all. An
	// exact variant returns (0, false).
	ApproximateFalsePositiveRate() (rate float64, approximate bool)

	// Close flushes and releases any resources (shard environments,
	// landing files).
	Close() error
}
