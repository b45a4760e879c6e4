// Package bitset wraps github.com/RoaringBitmap/roaring/v2 with the small
// set of operations the interner and worker need over token-id sets:
// intersection, union, set difference, and ascending iteration. Nothing
// here is ortho-specific; it exists so the rest of the module never
// imports roaring directly.
package bitset

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Set is a compressed bitmap over dense, non-negative token ids.
type Set struct {
	bm *roaring.Bitmap
}

// New returns an empty Set.
func New() *Set {
	return &Set{bm: roaring.New()}
}

// Of returns a Set containing exactly the given ids.
func Of(ids ...uint32) *Set {
	s := New()
	s.bm.AddMany(ids)
	return s
}

// Add inserts id into the set.
func (s *Set) Add(id uint32) {
	s.bm.Add(id)
}

// Contains reports whether id is a member of the set.
func (s *Set) Contains(id uint32) bool {
	return s.bm.Contains(id)
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	return &Set{bm: s.bm.Clone()}
}

// Cardinality returns the number of members.
func (s *Set) Cardinality() int {
	return int(s.bm.GetCardinality())
}

// IsEmpty reports whether the set has no members.
func (s *Set) IsEmpty() bool {
	return s.bm.IsEmpty()
}

// And intersects s with other in place and returns s.
func (s *Set) And(other *Set) *Set {
	s.bm.And(other.bm)
	return s
}

// Or unions s with other in place and returns s.
func (s *Set) Or(other *Set) *Set {
	s.bm.Or(other.bm)
	return s
}

// AndNot removes every member of other from s in place and returns s.
func (s *Set) AndNot(other *Set) *Set {
	s.bm.AndNot(other.bm)
	return s
}

// Intersection returns a new Set, leaving both operands untouched.
func Intersection(sets ...*Set) *Set {
	if len(sets) == 0 {
		return New()
	}
	out := sets[0].Clone()
	for _, s := range sets[1:] {
		out.And(s)
	}
	return out
}

// Union returns a new Set, leaving both operands untouched.
func Union(sets ...*Set) *Set {
	out := New()
	for _, s := range sets {
		out.Or(s)
	}
	return out
}

// Each calls fn for every member in ascending order, stopping early if fn
// returns false.
func (s *Set) Each(fn func(id uint32) bool) {
	it := s.bm.Iterator()
	for it.HasNext() {
		if !fn(it.Next()) {
			return
		}
	}
}

// ToSlice materializes the set's members in ascending order.
func (s *Set) ToSlice() []uint32 {
	return s.bm.ToArray()
}
