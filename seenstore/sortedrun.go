package seenstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/edsrzf/mmap-go"
)

const idSize = 8

// writeSortedRun writes ids, which must already be sorted ascending and
// unique, as a raw big-endian uint64 array.
func writeSortedRun(path string, ids []uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("seenstore: create run %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 64*1024)
	var b [idSize]byte
	for _, id := range ids {
		binary.BigEndian.PutUint64(b[:], id)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}
	return w.Flush()
}

// sortedRun is a read-only, memory-mapped view over a raw sorted uint64
// run file, supporting O(log n) containment checks and O(n) sequential
// iteration for merges.
type sortedRun struct {
	file *os.File
	mm   mmap.MMap
	n    int
}

func openSortedRun(path string) (*sortedRun, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seenstore: open run %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		f.Close()
		return &sortedRun{n: 0}, nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("seenstore: mmap run %s: %w", path, err)
	}
	return &sortedRun{file: f, mm: m, n: len(m) / idSize}, nil
}

func (r *sortedRun) Len() int { return r.n }

func (r *sortedRun) at(i int) uint64 {
	off := i * idSize
	return binary.BigEndian.Uint64(r.mm[off : off+idSize])
}

func (r *sortedRun) contains(id uint64) bool {
	if r.n == 0 {
		return false
	}
	i := sort.Search(r.n, func(i int) bool { return r.at(i) >= id })
	return i < r.n && r.at(i) == id
}

func (r *sortedRun) close() error {
	if r.mm != nil {
		if err := r.mm.Unmap(); err != nil {
			return err
		}
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// mergeUnique performs a k-way merge of sorted runs (fan-in clamped by
// the caller to [8,128] per spec.md §4.3) into a single sorted, unique
// output file, eliminating adjacent duplicates in one streaming
// sequential pass.
func mergeUnique(outPath string, runs []*sortedRun) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("seenstore: create merged run %s: %w", outPath, err)
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 64*1024)

	positions := make([]int, len(runs))
	var lastWritten uint64
	hasWritten := false

	for {
		best := -1
		var bestVal uint64
		for i, r := range runs {
			if positions[i] >= r.Len() {
				continue
			}
			v := r.at(positions[i])
			if best == -1 || v < bestVal {
				best = i
				bestVal = v
			}
		}
		if best == -1 {
			break
		}
		positions[best]++
		if hasWritten && bestVal == lastWritten {
			continue
		}
		var b [idSize]byte
		binary.BigEndian.PutUint64(b[:], bestVal)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
		lastWritten = bestVal
		hasWritten = true
	}
	return w.Flush()
}

// antiJoinMerge streams history and fresh (both sorted, unique, and
// mutually disjoint by construction — Generational.Observe never admits
// an id already present in history) into a single sorted output: the
// new cumulative history run. Despite the name, with disjoint inputs
// this degenerates to a sorted union; the anti-join shape is kept so
// that a caller with relaxed admission guarantees (e.g. recovering from
// a partially-applied prior generation) still gets correct output.
func antiJoinMerge(outPath string, history, fresh *sortedRun) error {
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("seenstore: create history run %s: %w", outPath, err)
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 64*1024)

	i, j := 0, 0
	write := func(v uint64) error {
		var b [idSize]byte
		binary.BigEndian.PutUint64(b[:], v)
		_, err := w.Write(b[:])
		return err
	}
	for i < history.Len() && j < fresh.Len() {
		hv, fv := history.at(i), fresh.at(j)
		switch {
		case hv < fv:
			if err := write(hv); err != nil {
				return err
			}
			i++
		case hv > fv:
			if err := write(fv); err != nil {
				return err
			}
			j++
		default: // already present in history; drop the duplicate from fresh
			if err := write(hv); err != nil {
				return err
			}
			i++
			j++
		}
	}
	for ; i < history.Len(); i++ {
		if err := write(history.at(i)); err != nil {
			return err
		}
	}
	for ; j < fresh.Len(); j++ {
		if err := write(fresh.at(j)); err != nil {
			return err
		}
	}
	return w.Flush()
}
