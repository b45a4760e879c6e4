// Copyright 2026 The Ortho Authors
// This file is part of ortho.

package seenstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/btree"
)

// GenerationalConfig configures the exact external-sort variant (spec.md
// §4.3 variant B).
type GenerationalConfig struct {
	Dir string

	// RAMBudgetIDs bounds how many ids the in-memory landing set holds
	// before a generation is flushed to disk. At 8 bytes/id plus btree
	// overhead this is the practical analog of "sort budget is ~0.7x
	// the component's RAM allotment" (spec.md §4.3) — the caller derives
	// it from config.Budgets.SeenStoreBytes.
	RAMBudgetIDs int

	// FanIn is the k-way merge fan-in, clamped to [8,128] (spec.md §4.3).
	FanIn int
}

func (c *GenerationalConfig) normalize() {
	if c.RAMBudgetIDs <= 0 {
		c.RAMBudgetIDs = 1_000_000
	}
	if c.FanIn < 8 {
		c.FanIn = 8
	}
	if c.FanIn > 128 {
		c.FanIn = 128
	}
}

// Generational is the exact, bounded-memory SeenStore: a landing log,
// periodic compaction into sorted unique runs, and a streaming anti-join
// merge against the cumulative history run (spec.md §4.3 variant B).
type Generational struct {
	mu  sync.Mutex
	cfg GenerationalConfig

	runsDir     string
	historyPath string
	generation  int

	landing    *btree.BTreeG[uint64]
	currentLog *landingLog
}

func uint64Less(a, b uint64) bool { return a < b }

// NewGenerational constructs the variant-B store, wiping cfg.Dir first
// (spec.md §6: dedup state is never reused across runs).
func NewGenerational(cfg GenerationalConfig) (*Generational, error) {
	cfg.normalize()
	if err := os.RemoveAll(cfg.Dir); err != nil {
		return nil, fmt.Errorf("seenstore: wipe %s: %w", cfg.Dir, err)
	}
	runsDir := filepath.Join(cfg.Dir, "runs")
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return nil, fmt.Errorf("seenstore: create %s: %w", runsDir, err)
	}
	historyPath := filepath.Join(runsDir, "history.run")
	if err := writeSortedRun(historyPath, nil); err != nil {
		return nil, err
	}

	g := &Generational{
		cfg:         cfg,
		runsDir:     runsDir,
		historyPath: historyPath,
		landing:     btree.NewBTreeG(uint64Less),
	}
	if err := g.openLandingLog(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Generational) openLandingLog() error {
	path := filepath.Join(g.runsDir, fmt.Sprintf("landing-%04d.log", g.generation))
	l, err := newLandingLog(path)
	if err != nil {
		return err
	}
	g.currentLog = l
	return nil
}

// Observe implements SeenStore.
func (g *Generational) Observe(id uint64) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.landing.Get(id); ok {
		return Seen, nil
	}

	history, err := openSortedRun(g.historyPath)
	if err != nil {
		return Fresh, err
	}
	seenInHistory := history.contains(id)
	if err := history.close(); err != nil {
		return Fresh, err
	}
	if seenInHistory {
		return Seen, nil
	}

	if err := g.currentLog.append(id); err != nil {
		return Fresh, fmt.Errorf("seenstore: %w: %v", ErrDiskFull, err)
	}
	g.landing.Set(id)

	if g.landing.Len() >= g.cfg.RAMBudgetIDs {
		if err := g.advanceGenerationLocked(); err != nil {
			return Fresh, err
		}
	}
	return Fresh, nil
}

// advanceGenerationLocked runs compact_landing, merge_unique, and
// anti_join (spec.md §4.3 variant B) and resets the in-memory landing
// set. Caller must hold g.mu.
func (g *Generational) advanceGenerationLocked() error {
	ids := make([]uint64, 0, g.landing.Len())
	g.landing.Scan(func(id uint64) bool {
		ids = append(ids, id)
		return true
	})

	sortedPath := filepath.Join(g.runsDir, fmt.Sprintf("sorted-%04d.run", g.generation))
	if err := writeSortedRun(sortedPath, ids); err != nil {
		return err
	}
	sortedRuns, err := chunkedMerge(g.runsDir, g.generation, []string{sortedPath}, g.cfg.FanIn)
	if err != nil {
		return err
	}

	fresh, err := openSortedRun(sortedRuns)
	if err != nil {
		return err
	}
	history, err := openSortedRun(g.historyPath)
	if err != nil {
		fresh.close()
		return err
	}

	newHistoryPath := filepath.Join(g.runsDir, fmt.Sprintf("history-gen-%04d.run", g.generation))
	if err := antiJoinMerge(newHistoryPath, history, fresh); err != nil {
		fresh.close()
		history.close()
		return err
	}
	fresh.close()
	history.close()

	if err := os.Rename(newHistoryPath, g.historyPath); err != nil {
		return fmt.Errorf("seenstore: %w: %v", ErrDiskFull, err)
	}
	_ = os.Remove(sortedPath)
	_ = os.Remove(sortedRuns)

	if err := g.currentLog.close(); err != nil {
		return err
	}
	_ = g.currentLog.removeFile()

	g.landing = btree.NewBTreeG(uint64Less)
	g.generation++
	return g.openLandingLog()
}

// chunkedMerge performs merge_unique over paths with the given fan-in,
// using a single pass when len(paths) <= fanIn and a tree of merges
// otherwise (spec.md §4.3: "Fan-in for k-way merge is clamped to
// [8,128]").
func chunkedMerge(dir string, generation int, paths []string, fanIn int) (string, error) {
	round := 0
	for len(paths) > 1 || round == 0 {
		var next []string
		for i := 0; i < len(paths); i += fanIn {
			end := i + fanIn
			if end > len(paths) {
				end = len(paths)
			}
			batch := paths[i:end]
			runs := make([]*sortedRun, 0, len(batch))
			for _, p := range batch {
				r, err := openSortedRun(p)
				if err != nil {
					return "", err
				}
				runs = append(runs, r)
			}
			outPath := filepath.Join(dir, fmt.Sprintf("merged-%04d-%d-%d.run", generation, round, i))
			err := mergeUnique(outPath, runs)
			for _, r := range runs {
				r.close()
			}
			if err != nil {
				return "", err
			}
			next = append(next, outPath)
		}
		for _, p := range paths {
			if round > 0 || len(paths) > 1 {
				_ = os.Remove(p)
			}
		}
		paths = next
		round++
		if len(paths) == 1 {
			break
		}
	}
	return paths[0], nil
}

// ApproximateFalsePositiveRate implements SeenStore.
func (g *Generational) ApproximateFalsePositiveRate() (float64, bool) {
	return 0, false
}

// Close implements SeenStore.
func (g *Generational) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentLog.close()
}
