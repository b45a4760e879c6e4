// Copyright 2026 The Ortho Authors
// This file is part of ortho.

// Package workqueue implements the bounded FIFO of orthos awaiting
// expansion (spec.md §4.4): an in-memory ring up to capacity B, spilling
// to a sequence of append-only chunk files under a queue directory when
// the ring is full.
package workqueue

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/michaelrauh/ortho/ortho"
)

// WorkQueue is a single FIFO shared by all worker goroutines: every
// Push and Pop takes the queue's mutex. It is not sharded per worker or
// per producer.
type WorkQueue struct {
	mu       sync.Mutex
	dir      string
	capacity int

	ring  []*ortho.Ortho
	front int

	pendingChunks []string // oldest first
	writer        *chunkWriter
	writerRecords int
	nextChunkID   int

	maxRecordsPerChunk int
}

// Config controls capacity and spill behavior.
type Config struct {
	// Dir holds spilled chunk files. Created if absent.
	Dir string
	// Capacity is the bounded in-memory ring size B (target 50k-100k at
	// large scale per spec.md §4.4).
	Capacity int
	// MaxRecordsPerChunk bounds how many records accumulate in one
	// spill chunk file before a new one is started.
	MaxRecordsPerChunk int
}

// New constructs a WorkQueue, creating Dir if necessary. Any pre-existing
// chunk files are treated as leftovers from construction.New is
// idempotent across process restarts only when the caller intends to
// resume mid-run; a fresh run should pass an empty directory.
func New(cfg Config) (*WorkQueue, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 65536
	}
	if cfg.MaxRecordsPerChunk <= 0 {
		cfg.MaxRecordsPerChunk = 16384
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("workqueue: create dir %s: %w", cfg.Dir, err)
	}

	existing, err := discoverChunks(cfg.Dir)
	if err != nil {
		return nil, err
	}

	return &WorkQueue{
		dir:                cfg.Dir,
		capacity:           cfg.Capacity,
		pendingChunks:      existing,
		maxRecordsPerChunk: cfg.MaxRecordsPerChunk,
		nextChunkID:        len(existing),
	}, nil
}

func discoverChunks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("workqueue: read dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}

// Push enqueues o. When the in-memory ring has room and nothing is
// already spilled (preserving FIFO order), o is appended directly;
// otherwise it is serialized to the current (or a freshly started)
// overflow chunk file.
func (q *WorkQueue) Push(o *ortho.Ortho) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pendingChunks) == 0 && q.writer == nil && len(q.ring)-q.front < q.capacity {
		q.ring = append(q.ring, o)
		return nil
	}

	if q.writer == nil || q.writerRecords >= q.maxRecordsPerChunk {
		if q.writer != nil {
			if err := q.writer.close(); err != nil {
				return fmt.Errorf("workqueue: close chunk: %w", err)
			}
		}
		path := filepath.Join(q.dir, fmt.Sprintf("chunk_%08d.bin", q.nextChunkID))
		w, err := createChunkWriter(path)
		if err != nil {
			return err
		}
		q.writer = w
		q.writerRecords = 0
		q.pendingChunks = append(q.pendingChunks, path)
		q.nextChunkID++
	}

	if err := q.writer.append(record{Dims: o.Dims(), Payload: o.Payload(), Version: o.Version()}); err != nil {
		return fmt.Errorf("workqueue: append record: %w", err)
	}
	q.writerRecords++
	return nil
}

// Pop removes and returns the oldest ortho, refilling the ring from the
// oldest spilled chunk when the ring is empty. ok is false when the
// queue is fully drained.
func (q *WorkQueue) Pop() (*ortho.Ortho, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.front < len(q.ring) {
		o := q.ring[q.front]
		q.front++
		if q.front == len(q.ring) {
			q.ring, q.front = nil, 0
		}
		return o, true, nil
	}

	for len(q.pendingChunks) > 0 && q.front >= len(q.ring) {
		if err := q.refillFromOldestChunkLocked(); err != nil {
			// Corrupt chunk: already dropped from pendingChunks by
			// refillFromOldestChunkLocked; try the next one (spec.md
			// §4.4 crash-resume tolerance).
			continue
		}
	}
	if q.front >= len(q.ring) {
		return nil, false, nil
	}
	o := q.ring[q.front]
	q.front++
	return o, true, nil
}

func (q *WorkQueue) refillFromOldestChunkLocked() error {
	path := q.pendingChunks[0]

	if q.writer != nil && len(q.pendingChunks) == 1 {
		if err := q.writer.close(); err != nil {
			return fmt.Errorf("workqueue: close chunk: %w", err)
		}
		q.writer = nil
		q.writerRecords = 0
	}

	records, err := readChunk(path)
	if err != nil {
		// A corrupt chunk is refused and reported; subsequent chunks
		// continue (spec.md §4.4).
		q.pendingChunks = q.pendingChunks[1:]
		_ = os.Remove(path)
		return fmt.Errorf("workqueue: corrupt chunk %s skipped: %w", path, err)
	}

	orthos := make([]*ortho.Ortho, len(records))
	for i, r := range records {
		orthos[i] = ortho.FromCanonical(r.Dims, r.Payload, r.Version)
	}
	q.ring = orthos
	q.front = 0
	q.pendingChunks = q.pendingChunks[1:]
	return os.Remove(path)
}

// Len reports the number of orthos immediately available without a disk
// read (the in-memory ring only; spilled chunks are not counted since
// reading them is the point of bounding memory).
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ring) - q.front
}

// Empty reports whether both the ring and all spilled chunks are
// exhausted.
func (q *WorkQueue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.front >= len(q.ring) && len(q.pendingChunks) == 0
}

// Close flushes any open spill writer.
func (q *WorkQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.writer != nil {
		err := q.writer.close()
		q.writer = nil
		return err
	}
	return nil
}
