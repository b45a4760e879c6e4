package ortho

import "sort"

const empty int64 = -1

// canonicalize applies spec.md §4.2's geometric symmetry reduction:
//
//  1. axes are sorted non-decreasingly by length;
//  2. among axes of equal length, the axis whose primary line (the line
//     through the origin that varies only that axis) compares smallest
//     is ordered first, comparing the full primary line lexicographically
//     and treating an unfilled slot as greater than any token (spec.md §9
//     Open Question 1). Axes whose primary lines compare equal keep their
//     current order (the sort is stable); no further tie-break along
//     other lines is applied;
//  3. for the shape (2,2) specifically, once the third slot is filled,
//     positions [1] and [2] are swapped if out of order.
//
// It returns the canonical dims and payload. The function is pure: it
// never mutates its inputs.
func canonicalize(dims []int, payload []int64) ([]int, []int64) {
	perm := axisPermutation(dims, payload)
	newDims, newPayload := applyAxisPermutation(dims, payload, perm)

	if len(newDims) == 2 && newDims[0] == 2 && newDims[1] == 2 {
		filled := 0
		for _, v := range newPayload {
			if v != empty {
				filled++
			}
		}
		if filled >= 3 && newPayload[1] != empty && newPayload[2] != empty && newPayload[1] > newPayload[2] {
			newPayload[1], newPayload[2] = newPayload[2], newPayload[1]
		}
	}
	return newDims, newPayload
}

// axisPermutation returns, for each output axis position, the index of
// the source axis that should occupy it.
func axisPermutation(dims []int, payload []int64) []int {
	type axisInfo struct {
		idx  int
		line []int64
	}
	infos := make([]axisInfo, len(dims))
	for i := range dims {
		idxs := axisLine(dims, i)
		line := make([]int64, len(idxs))
		for j, fi := range idxs {
			line[j] = payload[fi]
		}
		infos[i] = axisInfo{idx: i, line: line}
	}

	sort.SliceStable(infos, func(a, b int) bool {
		da, db := dims[infos[a].idx], dims[infos[b].idx]
		if da != db {
			return da < db
		}
		return compareLines(infos[a].line, infos[b].line) < 0
	})

	perm := make([]int, len(infos))
	for i, info := range infos {
		perm[i] = info.idx
	}
	return perm
}

// compareLines orders two equal-length token sequences, treating an
// unfilled slot (empty) as greater than any filled token.
func compareLines(a, b []int64) int {
	for i := range a {
		av, bv := a[i], b[i]
		if av == bv {
			continue
		}
		if av == empty {
			return 1
		}
		if bv == empty {
			return -1
		}
		if av < bv {
			return -1
		}
		return 1
	}
	return 0
}

// applyAxisPermutation rebuilds dims and payload under the given axis
// permutation (perm[newAxis] = oldAxis).
func applyAxisPermutation(dims []int, payload []int64, perm []int) ([]int, []int64) {
	newDims := make([]int, len(dims))
	for i, old := range perm {
		newDims[i] = dims[old]
	}

	identity := true
	for i, old := range perm {
		if i != old {
			identity = false
			break
		}
	}
	if identity {
		return append([]int(nil), dims...), append([]int64(nil), payload...)
	}

	newPayload := make([]int64, len(payload))
	for idx := range payload {
		oldCoords := coordsFromIndex(dims, idx)
		newCoords := make([]int, len(dims))
		for newAxis, oldAxis := range perm {
			newCoords[newAxis] = oldCoords[oldAxis]
		}
		newPayload[indexFromCoords(newDims, newCoords)] = payload[idx]
	}
	return newDims, newPayload
}
