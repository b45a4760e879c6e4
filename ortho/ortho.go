// Copyright 2026 The Ortho Authors
// This file is part of ortho.
//
// ortho is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package ortho implements the canonical multi-dimensional arrangement
// of tokens described in spec.md §3-§4.2: identity, extension,
// canonicalization, and requirement computation.
package ortho

import (
	"github.com/michaelrauh/ortho/interner"
)

// State is the per-ortho lifecycle state (spec.md §4.2).
type State int

const (
	Empty State = iota
	Partial
	Complete
)

// Ortho is an immutable canonical arrangement. Every mutating operation
// (Add, Expand, remap, canonicalize) returns a fresh value; nothing here
// is ever mutated in place once constructed.
type Ortho struct {
	dims        []int
	payload     []int64 // empty slot == -1, else the token value
	version     uint64
	id          uint64
	filledCount int
}

// New returns the empty (2,2) seed ortho tagged with version.
func New(version uint64) *Ortho {
	payload := []int64{empty, empty, empty, empty}
	o := &Ortho{dims: []int{2, 2}, payload: payload, version: version}
	o.id = idOf(o.dims, o.payload)
	return o
}

// FromCanonical reconstructs an Ortho from an already-canonical
// (dims, payload) pair, such as one loaded from a snapshot (spec.md §6).
// It recomputes id and filledCount rather than trusting the caller.
func FromCanonical(dims []int, payload []int64, version uint64) *Ortho {
	filled := 0
	for _, v := range payload {
		if v != empty {
			filled++
		}
	}
	o := &Ortho{
		dims:        append([]int(nil), dims...),
		payload:     append([]int64(nil), payload...),
		version:     version,
		filledCount: filled,
	}
	o.id = idOf(o.dims, o.payload)
	return o
}

// Dims returns the axis-length tuple.
func (o *Ortho) Dims() []int { return append([]int(nil), o.dims...) }

// Version returns the Interner version this ortho was built under.
func (o *Ortho) Version() uint64 { return o.version }

// ID is the path-independent identity hash (O(1) field access).
func (o *Ortho) ID() uint64 { return o.id }

// FilledCount returns the number of occupied slots.
func (o *Ortho) FilledCount() int { return o.filledCount }

// Volume returns the product of the dims.
func (o *Ortho) Volume() int { return volume(o.dims) }

// State reports the lifecycle stage.
func (o *Ortho) State() State {
	switch {
	case o.filledCount == 0:
		return Empty
	case o.filledCount == o.Volume():
		return Complete
	default:
		return Partial
	}
}

// Tokens returns the filled slots, in raster order, as interner tokens.
// Used by requirement computation and by serialization.
func (o *Ortho) Tokens() []interner.Token {
	out := make([]interner.Token, 0, o.filledCount)
	for _, v := range o.payload {
		if v != empty {
			out = append(out, interner.Token(v))
		}
	}
	return out
}

// Payload exposes the raw raster-order slots; -1 denotes an empty slot.
// Used by snapshot encoding.
func (o *Ortho) Payload() []int64 { return append([]int64(nil), o.payload...) }

// nextEmptySlot returns the flat index of the first empty slot in raster
// order, or -1 if the ortho is already complete.
func (o *Ortho) nextEmptySlot() int {
	for i, v := range o.payload {
		if v == empty {
			return i
		}
	}
	return -1
}

// Requirements computes (required_prefixes, forbidden_prefixes) for the
// next empty slot, per spec.md §4.1/§4.2: every axis-aligned line
// through the slot contributes one required prefix of its already-filled
// predecessors along that axis (an axis whose line hasn't started yet
// contributes the empty prefix, which still constrains the candidate to
// a phrase-starting token).
//
// forbidden is always empty: the literal corpora in spec.md §8 never
// exercise a nonempty forbidden set, and the spec does not pin the exact
// geometric rule beyond the one-sentence rationale in §4.1 ("a would-be
// line that is already complete in some other arrangement"); this is
// recorded as a resolved ambiguity in DESIGN.md rather than guessed at.
func (o *Ortho) Requirements() (required [][]interner.Token, forbidden [][]interner.Token) {
	slot := o.nextEmptySlot()
	if slot < 0 {
		return nil, nil
	}
	coords := coordsFromIndex(o.dims, slot)

	for axis := range o.dims {
		line := lineThrough(o.dims, coords, axis)
		prefix := make([]interner.Token, 0, coords[axis])
		for _, fi := range line {
			if fi == slot {
				break
			}
			prefix = append(prefix, interner.Token(o.payload[fi]))
		}
		required = append(required, prefix)
	}
	return required, nil
}

// Add places token in the next empty slot and returns the canonicalized
// child. ok is false if canonicalization cannot produce a valid
// arrangement (today, canonicalize is total over any payload, so this
// only returns false when the ortho is already complete).
func (o *Ortho) Add(token interner.Token) (child *Ortho, ok bool) {
	slot := o.nextEmptySlot()
	if slot < 0 {
		return nil, false
	}
	payload := append([]int64(nil), o.payload...)
	payload[slot] = int64(token)

	dims, payload := canonicalize(append([]int(nil), o.dims...), payload)
	child = &Ortho{
		dims:        dims,
		payload:     payload,
		version:     o.version,
		filledCount: o.filledCount + 1,
	}
	child.id = idOf(child.dims, child.payload)
	return child, true
}

// Expand grows the lowest-priority axis (the first, shortest axis in the
// canonical non-decreasing order) by one, creating prod(older dims) new
// empty slots and returning a fresh ortho. The worker calls this only on
// children that are complete (see DESIGN.md decision 2).
func (o *Ortho) Expand() *Ortho {
	newDims := append([]int(nil), o.dims...)
	newDims[0]++

	newPayload := make([]int64, volume(newDims))
	for i := range newPayload {
		newPayload[i] = empty
	}
	for idx, v := range o.payload {
		coords := coordsFromIndex(o.dims, idx)
		newPayload[indexFromCoords(newDims, coords)] = v
	}

	dims, payload := canonicalize(newDims, newPayload)
	child := &Ortho{
		dims:        dims,
		payload:     payload,
		version:     o.version,
		filledCount: o.filledCount,
	}
	child.id = idOf(child.dims, child.payload)
	return child
}

// Remap returns a child ortho with every filled token renumbered
// according to tokenMap, tagged with newVersion. Needed whenever the
// Interner version changes under a worker (spec.md §4.2, §6).
func (o *Ortho) Remap(tokenMap map[interner.Token]interner.Token, newVersion uint64) *Ortho {
	payload := append([]int64(nil), o.payload...)
	for i, v := range payload {
		if v == empty {
			continue
		}
		if mapped, ok := tokenMap[interner.Token(v)]; ok {
			payload[i] = int64(mapped)
		}
	}
	dims, payload := canonicalize(append([]int(nil), o.dims...), payload)
	child := &Ortho{
		dims:        dims,
		payload:     payload,
		version:     newVersion,
		filledCount: o.filledCount,
	}
	child.id = idOf(child.dims, child.payload)
	return child
}

// Score is the deterministic ordering used for "best-so-far" selection:
// volume first, then filled_count, then canonical payload comparison
// (spec.md §4.2). A larger Score is better.
type Score struct {
	Volume      int
	FilledCount int
	Payload     []int64
}

// Less reports whether s is strictly worse than other.
func (s Score) Less(other Score) bool {
	if s.Volume != other.Volume {
		return s.Volume < other.Volume
	}
	if s.FilledCount != other.FilledCount {
		return s.FilledCount < other.FilledCount
	}
	return compareLines(s.Payload, other.Payload) > 0 // "smaller" canonical payload wins ties deterministically
}

// Score computes the ortho's Score.
func (o *Ortho) Score() Score {
	return Score{Volume: o.Volume(), FilledCount: o.filledCount, Payload: append([]int64(nil), o.payload...)}
}
