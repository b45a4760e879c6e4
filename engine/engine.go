// Copyright 2026 The Ortho Authors
// This file is part of ortho.
//
// ortho is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package engine wires the Interner, Frontier, WorkQueue, SeenStore and
// worker pool behind the two control actions of spec.md §6: Ingest and
// Run, operating on a single working directory that holds the snapshot
// file and the SeenStore directory.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/erigontech/erigon-lib/log/v3"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/michaelrauh/ortho/config"
	"github.com/michaelrauh/ortho/frontier"
	"github.com/michaelrauh/ortho/interner"
	"github.com/michaelrauh/ortho/ortho"
	"github.com/michaelrauh/ortho/seenstore"
	"github.com/michaelrauh/ortho/snapshot"
	"github.com/michaelrauh/ortho/worker"
	"github.com/michaelrauh/ortho/workqueue"
)

// ErrLocked is returned by Open when another process already holds the
// working directory's lock (spec.md §6, §9 "Global state").
var ErrLocked = errors.New("engine: working directory is locked by another process")

const (
	snapshotFileName = "snapshot.bin"
	lockFileName     = "LOCK"
	seenStoreDirName = "seenstore"
	workQueueDirName = "workqueue"
)

// Engine is the in-process control surface: Open a working directory,
// Ingest text to grow the vocabulary, Run the branch-and-bound search
// to exhaustion or cancellation, and the directory is released on
// Close.
type Engine struct {
	dir  string
	lock *flock.Flock
	cfg  config.Config

	interner *interner.Interner
	frontier *frontier.Frontier
	queue    *workqueue.WorkQueue
	seen     seenstore.SeenStore
	best     *ortho.Ortho
}

// Open acquires an exclusive, non-blocking lock on <dir>/LOCK and loads
// any existing snapshot found there, or starts fresh if none exists.
func Open(dir string) (*Engine, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create working dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("engine: acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	cfg := config.Resolve()

	e := &Engine{dir: dir, lock: lock, cfg: cfg}

	if err := e.loadOrInit(cfg); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return e, nil
}

func (e *Engine) loadOrInit(cfg config.Config) error {
	snapPath := filepath.Join(e.dir, snapshotFileName)
	if f, err := os.Open(snapPath); err == nil {
		defer f.Close()
		s, err := snapshot.Load(f)
		if err != nil {
			return fmt.Errorf("engine: load snapshot: %w", err)
		}
		e.interner = s.Interner
		e.frontier = s.Frontier
		e.best = s.BestOrtho
		log.Info("engine: resumed from snapshot", "frontier_size", e.frontier.Len(), "vocabulary", e.interner.VocabularySize())
	} else if errors.Is(err, os.ErrNotExist) {
		e.interner = interner.New()
		e.frontier = frontier.New()
	} else {
		return fmt.Errorf("engine: stat snapshot: %w", err)
	}

	if e.best == nil {
		// spec.md §8 scenario 1: the seed is the best ortho until a
		// complete one is found.
		e.best = ortho.New(e.interner.Version())
	}

	queue, err := workqueue.New(workqueue.Config{
		Dir:      filepath.Join(e.dir, workQueueDirName),
		Capacity: cfg.QueueCapacity,
	})
	if err != nil {
		return fmt.Errorf("engine: open workqueue: %w", err)
	}
	e.queue = queue

	seenDir := filepath.Join(e.dir, seenStoreDirName)
	switch cfg.SeenStoreVariant {
	case config.VariantBloomApproximate:
		e.seen, err = seenstore.NewBloomBackstop(seenstore.BloomConfig{Dir: seenDir})
	default:
		e.seen, err = seenstore.NewGenerational(seenstore.GenerationalConfig{
			Dir:          seenDir,
			RAMBudgetIDs: cfg.RAMBudgetIDs(),
			FanIn:        cfg.MergeFanIn,
		})
	}
	if err != nil {
		return fmt.Errorf("engine: open seenstore: %w", err)
	}

	if e.frontier.Len() == 0 && e.queue.Empty() {
		if err := e.queue.Push(ortho.New(e.interner.Version())); err != nil {
			return fmt.Errorf("engine: seed workqueue: %w", err)
		}
	}
	return nil
}

// Ingest tokenizes text into the Interner, and if the Interner version
// changes (new tokens or new phrases), remaps every Frontier entry to
// the new version so subsequent Run
// calls never operate on stale token numbering (spec.md §4.2, §8
// scenario 3).
func (e *Engine) Ingest(text string) error {
	_, changed := e.interner.InternText(text)
	if !changed {
		return nil
	}
	remap := e.interner.Remap()
	newVersion := e.interner.Version()
	e.frontier = e.frontier.RemapAll(remap, newVersion)
	if e.best != nil {
		e.best = e.best.Remap(remap, newVersion)
	}
	log.Info("engine: ingested text, interner changed", "new_version", newVersion, "vocabulary", e.interner.VocabularySize())
	return nil
}

// Run drives the worker pool to exhaustion or until ctx is cancelled,
// tagging the engine's own log lines for the run with a fresh run id
// (spec.md §6 "Run correlation"). The worker pool logs through the
// package-level logger, so its lines do not carry the run id.
func (e *Engine) Run(ctx context.Context) error {
	runID := uuid.New().String()
	runLog := log.New("run_id", runID)
	runLog.Info("engine: run starting", "workers", e.cfg.WorkerCount)

	pool := &worker.Pool{
		Interner:  e.interner,
		Queue:     e.queue,
		Seen:      e.seen,
		Frontier:  e.frontier,
		Workers:   e.cfg.WorkerCount,
		BatchSize: e.cfg.BatchSize,
	}
	if e.best != nil {
		pool.SeedBest(e.best)
	}

	err := pool.Run(ctx)
	if best := pool.Best(); best != nil {
		e.best = best
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		runLog.Error("engine: run aborted on fatal error", "err", err)
		if snapErr := e.Snapshot(); snapErr != nil {
			runLog.Error("engine: snapshot-on-abort failed", "err", snapErr)
		}
		return err
	}
	if err != nil {
		runLog.Warn("engine: run cancelled", "err", err)
		if snapErr := e.Snapshot(); snapErr != nil {
			runLog.Error("engine: snapshot-on-cancel failed", "err", snapErr)
		}
		return err
	}

	runLog.Info("engine: run complete", "frontier_size", e.frontier.Len())
	return e.Snapshot()
}

// Snapshot persists the current Interner and Frontier state to
// <dir>/snapshot.bin via an atomic rename, so a crash mid-write never
// leaves a corrupt snapshot behind.
func (e *Engine) Snapshot() error {
	tmpPath := filepath.Join(e.dir, snapshotFileName+".tmp")
	finalPath := filepath.Join(e.dir, snapshotFileName)

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("engine: create snapshot tmp file: %w", err)
	}
	s := snapshot.Snapshot{Interner: e.interner, Frontier: e.frontier, BestOrtho: e.best}
	if err := snapshot.Save(f, s); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("engine: write snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("engine: close snapshot tmp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("engine: rename snapshot into place: %w", err)
	}
	return nil
}

// Close flushes the WorkQueue and SeenStore and releases the working
// directory lock.
func (e *Engine) Close() error {
	var errs []error
	if err := e.queue.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.seen.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
