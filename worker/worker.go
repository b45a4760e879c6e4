// Copyright 2026 The Ortho Authors
// This file is part of ortho.
//
// ortho is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package worker implements the branch-and-bound expansion loop
// (spec.md §4.5): pop a candidate from the WorkQueue, compute its
// required/forbidden phrase constraints, intersect against the
// Interner's phrase index, and fan the surviving candidate tokens out
// into child orthos, batch-parallel across a fixed worker pool.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erigontech/erigon-lib/log/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/michaelrauh/ortho/frontier"
	"github.com/michaelrauh/ortho/interner"
	"github.com/michaelrauh/ortho/metrics"
	"github.com/michaelrauh/ortho/ortho"
	"github.com/michaelrauh/ortho/seenstore"
	"github.com/michaelrauh/ortho/workqueue"
)

// Pool runs the batch-parallel branch-and-bound loop described in
// spec.md §4.5 across a fixed number of worker goroutines, synchronizing
// only at batch boundaries.
type Pool struct {
	Interner  *interner.Interner
	Queue     *workqueue.WorkQueue
	Seen      seenstore.SeenStore
	Frontier  *frontier.Frontier
	Workers   int
	BatchSize int

	mu   sync.Mutex
	best *ortho.Ortho
}

// Best returns the highest-scoring complete ortho observed so far, or
// the seed ortho if Run has started but no complete ortho has been found
// yet (spec.md §8 scenario 1: "best ortho is the seed").
func (p *Pool) Best() *ortho.Ortho {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.best
}

// SeedBest records o as the initial best-so-far candidate if none has
// been recorded yet. Run calls this with the seed ortho before draining
// the queue, so a run that completes nothing still reports the seed as
// best rather than nil.
func (p *Pool) SeedBest(o *ortho.Ortho) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.best == nil {
		p.best = o
	}
}

func (p *Pool) considerBest(o *ortho.Ortho) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.best == nil || p.best.Score().Less(o.Score()) {
		p.best = o
	}
}

// Run drains the queue to exhaustion, or until ctx is cancelled. A batch
// is a snapshot of up to BatchSize queued orthos, processed by up to
// Workers goroutines concurrently; the next batch isn't drawn until the
// current one fully drains (spec.md §4.5 "synchronizes only at batch
// boundaries"). Run returns nil once the queue has been empty at a batch
// boundary, ctx.Err() on cancellation, or the first fatal error a worker
// reports (e.g. seenstore.ErrDiskFull).
func (p *Pool) Run(ctx context.Context) error {
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = workers
	}

	p.SeedBest(ortho.New(p.Interner.Version()))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := p.drawBatch(batchSize)
		if err != nil {
			return fmt.Errorf("worker: draw batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		timer := newBatchTimer()
		if err := p.runBatch(ctx, batch, workers); err != nil {
			timer.observe()
			return err
		}
		timer.observe()

		metrics.QueueDepth.Set(float64(p.Queue.Len()))
		metrics.FrontierSize.Set(float64(p.Frontier.Len()))
		if rate, approximate := p.Seen.ApproximateFalsePositiveRate(); approximate {
			metrics.BloomEstimatedFPRate.Set(rate)
		}
	}
}

func (p *Pool) drawBatch(n int) ([]*ortho.Ortho, error) {
	batch := make([]*ortho.Ortho, 0, n)
	for i := 0; i < n; i++ {
		o, ok, err := p.Queue.Pop()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		batch = append(batch, o)
	}
	return batch, nil
}

func (p *Pool) runBatch(ctx context.Context, batch []*ortho.Ortho, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(workers))

	for i, o := range batch {
		o := o
		if err := sem.Acquire(gctx, 1); err != nil {
			// Cancelled before scheduling: requeue everything from here
			// on so cancellation never silently drops popped work.
			p.requeueOrLog(batch[i:])
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			return p.processOne(gctx, o)
		})
	}
	return g.Wait()
}

// requeueOrLog pushes orthos back onto the WorkQueue after a batch is
// aborted mid-draw; a push failure here is logged rather than escalated
// since the caller is already unwinding on a prior error.
func (p *Pool) requeueOrLog(pending []*ortho.Ortho) {
	for _, o := range pending {
		if err := p.Queue.Push(o); err != nil {
			log.Error("worker: failed to requeue ortho after batch abort", "err", err)
		}
	}
}

// processOne implements one branch-and-bound step for a single popped
// ortho: remap on version drift, then try every surviving candidate
// token. Expansion (spec.md §4.5 step 5) is handled downstream in
// tryExpand, gated on completion rather than attempted here.
func (p *Pool) processOne(ctx context.Context, o *ortho.Ortho) error {
	if err := ctx.Err(); err != nil {
		p.requeueOrLog([]*ortho.Ortho{o})
		return err
	}

	if v := p.Interner.Version(); v != o.Version() {
		from := o.Version()
		remap := p.Interner.Remap()
		o = o.Remap(remap, v)
		log.Warn("worker: remapped stale ortho to current interner version", "from", from, "to", v)
	}

	required, forbidden := o.Requirements()
	candidates := p.Interner.Intersect(required, forbidden)

	var result error
	candidates.Each(func(tokenID uint32) bool {
		if err := ctx.Err(); err != nil {
			result = err
			p.requeueOrLog([]*ortho.Ortho{o})
			return false
		}
		child, ok := o.Add(interner.Token(tokenID))
		if !ok {
			return true
		}
		if err := p.handleChild(child); err != nil {
			result = err
			return false
		}
		return true
	})
	return result
}

// handleChild observes a freshly built child's identity, dropping it
// silently if already seen (spec.md §4.3/§4.5), and routes a genuinely
// fresh child either into the Frontier (if complete) or back onto the
// WorkQueue for further extension.
func (p *Pool) handleChild(child *ortho.Ortho) error {
	outcome, err := p.Seen.Observe(child.ID())
	if err != nil {
		return fmt.Errorf("worker: seenstore observe: %w", err)
	}
	if outcome == seenstore.Seen {
		metrics.SeenSeenTotal.Inc()
		return nil
	}
	metrics.SeenFreshTotal.Inc()

	if child.State() == ortho.Complete {
		p.Frontier.Insert(child)
		p.considerBest(child)
		return p.tryExpand(child)
	}

	if err := p.Queue.Push(child); err != nil {
		return fmt.Errorf("worker: push child: %w", err)
	}
	return nil
}

// tryExpand grows a completed ortho's lowest-priority axis and pushes
// the result, deduplicated through the SeenStore like any other child
// (spec.md §9 Open Question 2 and §4.5 step 5, "when a seed-pass
// opportunity is available, also try o.expand()"). Expand is only
// attempted on completion, not on every pop: an empty or partial ortho
// always has at least the starts-any candidate, so expanding those
// unconditionally would grow dims forever without ever converging to an
// empty queue (spec.md §4.5 "the loop terminates when the queue
// drains"). Expanding only completed shapes keeps the result set closed
// under extension while bounding growth to shapes the worker actually
// finished filling.
func (p *Pool) tryExpand(child *ortho.Ortho) error {
	grown := child.Expand()
	outcome, err := p.Seen.Observe(grown.ID())
	if err != nil {
		return fmt.Errorf("worker: seenstore observe expanded ortho: %w", err)
	}
	if outcome == seenstore.Seen {
		metrics.SeenSeenTotal.Inc()
		return nil
	}
	metrics.SeenFreshTotal.Inc()

	if err := p.Queue.Push(grown); err != nil {
		return fmt.Errorf("worker: push expanded ortho: %w", err)
	}
	return nil
}

type batchTimer struct {
	start time.Time
}

func newBatchTimer() *batchTimer {
	return &batchTimer{start: time.Now()}
}

func (t *batchTimer) observe() {
	metrics.WorkerBatchSeconds.Observe(time.Since(t.start).Seconds())
}
