// Copyright 2026 The Ortho Authors
// This file is part of ortho.

// Package frontier holds the set of lead orthos surviving
// prefix-subsumption, partitioned by shape (spec.md §4.6). It is the
// durable output state between runs.
package frontier

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/michaelrauh/ortho/interner"
	"github.com/michaelrauh/ortho/ortho"
)

// item is the btree element: orthos within one dims bucket are ordered
// by canonical payload bytes, with id as a tiebreaker for determinism.
type item struct {
	o *ortho.Ortho
}

func (a item) Less(b btree.Item) bool {
	ob := b.(item).o
	cmp := comparePayload(a.o.Payload(), ob.Payload())
	if cmp != 0 {
		return cmp < 0
	}
	return a.o.ID() < ob.ID()
}

func comparePayload(a, b []int64) int {
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		if a[i] < b[i] {
			return -1
		}
		return 1
	}
	return 0
}

// Frontier maps dims -> ordered set of lead orthos.
type Frontier struct {
	mu      sync.RWMutex
	buckets map[string]*btree.BTree
	byID    map[uint64]*ortho.Ortho
}

// New returns an empty Frontier.
func New() *Frontier {
	return &Frontier{
		buckets: make(map[string]*btree.BTree),
		byID:    make(map[uint64]*ortho.Ortho),
	}
}

func dimsKey(dims []int) string {
	var b strings.Builder
	for i, d := range dims {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%d", d)
	}
	return b.String()
}

// isSubAssignment reports whether every filled slot of a matches the
// same slot in b (a "proper prefix" in the generalized, non-contiguous
// sense spec.md §4.6/§8 scenario 6 needs: canonicalization can leave the
// filled slots of a partial ortho non-contiguous in raster order).
func isSubAssignment(a, b []int64) bool {
	for i := range a {
		if a[i] == -1 {
			continue
		}
		if b[i] != a[i] {
			return false
		}
	}
	return true
}

// Insert applies spec.md §4.6's three-step rule: compute canonical
// payload (already true of o, by construction), check subsumption
// against the bucket, insert if not dominated.
func (f *Frontier) Insert(o *ortho.Ortho) (inserted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := dimsKey(o.Dims())
	bucket, ok := f.buckets[key]
	if !ok {
		bucket = btree.New(32)
		f.buckets[key] = bucket
	}

	var dominatedBy *ortho.Ortho
	var dominates []*ortho.Ortho
	bucket.Ascend(func(i btree.Item) bool {
		existing := i.(item).o
		pa, pb := o.Payload(), existing.Payload()
		switch {
		case existing.FilledCount() > o.FilledCount() && isSubAssignment(pa, pb):
			dominatedBy = existing
			return false
		case o.FilledCount() > existing.FilledCount() && isSubAssignment(pb, pa):
			dominates = append(dominates, existing)
		}
		return true
	})
	if dominatedBy != nil {
		return false
	}
	for _, d := range dominates {
		bucket.Delete(item{o: d})
		delete(f.byID, d.ID())
	}
	bucket.ReplaceOrInsert(item{o: o})
	f.byID[o.ID()] = o
	return true
}

// Contains reports whether id is currently present in the Frontier.
func (f *Frontier) Contains(id uint64) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.byID[id]
	return ok
}

// Shapes returns the dims tuples with at least one lead ortho.
func (f *Frontier) Shapes() [][]int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([][]int, 0, len(f.buckets))
	seen := map[string][]int{}
	for key, bucket := range f.buckets {
		bucket.Ascend(func(i btree.Item) bool {
			if _, ok := seen[key]; !ok {
				seen[key] = i.(item).o.Dims()
			}
			return false
		})
	}
	for _, d := range seen {
		out = append(out, d)
	}
	return out
}

// compareDims orders dims tuples by length, then elementwise.
func compareDims(a, b []int) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Each calls fn for every lead ortho in deterministic (dims, then
// payload) order. Bucket keys are sorted by their dims tuple before
// iteration so the result doesn't depend on Go's randomized map order.
func (f *Frontier) Each(fn func(o *ortho.Ortho)) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, 0, len(f.buckets))
	dims := make(map[string][]int, len(f.buckets))
	for key, bucket := range f.buckets {
		keys = append(keys, key)
		if min := bucket.Min(); min != nil {
			dims[key] = min.(item).o.Dims()
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return compareDims(dims[keys[i]], dims[keys[j]]) < 0
	})

	for _, key := range keys {
		f.buckets[key].Ascend(func(i btree.Item) bool {
			fn(i.(item).o)
			return true
		})
	}
}

// Len returns the total number of lead orthos across all shapes.
func (f *Frontier) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.byID)
}

// RemapAll rebuilds the Frontier with every entry remapped to newVersion
// via tokenMap (spec.md §4.2 Remap, §8 scenario 3: "every Frontier entry
// carried over must have been remapped to the new numbering").
func (f *Frontier) RemapAll(tokenMap map[interner.Token]interner.Token, newVersion uint64) *Frontier {
	f.mu.RLock()
	old := make([]*ortho.Ortho, 0, len(f.byID))
	for _, o := range f.byID {
		old = append(old, o)
	}
	f.mu.RUnlock()

	out := New()
	for _, o := range old {
		out.Insert(o.Remap(tokenMap, newVersion))
	}
	return out
}
