package seenstore

import (
	"fmt"
	"math"
	"os"

	"github.com/holiman/bloomfilter/v2"
)

// BloomConfig configures the approximate-exact variant (spec.md §4.3A).
type BloomConfig struct {
	// BitCapacity is the global bloom filter's bit capacity (1e9-1e10
	// per spec.md §4.3).
	BitCapacity uint64
	// FalsePositiveRate is the target false positive rate used to size
	// the bloom filter's hash count.
	FalsePositiveRate float64
	// Shards is S, the number of hash-prefix partitioned exact-backstop
	// shards.
	Shards uint64
	// HotShards is K, the LRU capacity of simultaneously open shards.
	HotShards int
	// Dir is the per-run directory shard files live under.
	Dir string
}

// BloomBackstop is spec.md §4.3 variant A: a global bloom filter fronts
// S exact shards; a bloom negative is conclusively fresh, a bloom
// positive falls through to the shard for an exact check.
type BloomBackstop struct {
	cfg    BloomConfig
	filter *bloomfilter.Filter
	shards *shardStore
}

// NewBloomBackstop constructs the variant-A store, wiping any existing
// shard state under cfg.Dir (spec.md §6: "dedup state is rebuilt from
// the Frontier + replay, never reused across runs").
func NewBloomBackstop(cfg BloomConfig) (*BloomBackstop, error) {
	if cfg.Shards == 0 {
		cfg.Shards = 64
	}
	if cfg.HotShards == 0 || uint64(cfg.HotShards) > cfg.Shards {
		cfg.HotShards = int(min64(cfg.Shards, 16))
	}
	if cfg.FalsePositiveRate == 0 {
		cfg.FalsePositiveRate = 1e-4
	}
	if cfg.BitCapacity == 0 {
		cfg.BitCapacity = 4_000_000_000
	}

	// maxElements is sized so that cfg.BitCapacity bits, at the target
	// false-positive rate, is the filter's natural capacity: an optimal
	// filter spends -ln(p)/ln(2)^2 bits per element.
	maxElements := uint64(float64(cfg.BitCapacity) * math.Ln2 * math.Ln2 / -math.Log(cfg.FalsePositiveRate))
	if maxElements == 0 {
		maxElements = 1
	}
	filter, err := bloomfilter.NewOptimal(maxElements, cfg.FalsePositiveRate)
	if err != nil {
		return nil, fmt.Errorf("seenstore: new bloom filter: %w", err)
	}

	if err := os.RemoveAll(cfg.Dir); err != nil {
		return nil, fmt.Errorf("seenstore: wipe %s: %w", cfg.Dir, err)
	}
	shards, err := newShardStore(cfg.Dir, cfg.Shards, cfg.HotShards)
	if err != nil {
		return nil, err
	}

	return &BloomBackstop{cfg: cfg, filter: filter, shards: shards}, nil
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// Observe implements SeenStore.
func (b *BloomBackstop) Observe(id uint64) (Outcome, error) {
	h := idHash64(id)
	if !b.filter.Contains(h) {
		b.filter.Add(h)
		if _, err := b.shards.observe(id); err != nil {
			return Fresh, err
		}
		return Fresh, nil
	}
	// Bloom positive: could be a true positive (seen) or a false
	// positive (fresh). Fall through to the exact shard.
	outcome, err := b.shards.observe(id)
	if err != nil {
		return Fresh, err
	}
	if outcome == Fresh {
		b.filter.Add(h)
	}
	return outcome, nil
}

// ApproximateFalsePositiveRate implements SeenStore.
func (b *BloomBackstop) ApproximateFalsePositiveRate() (float64, bool) {
	return b.filter.FalsePosititveProbability(), true
}

// Close implements SeenStore.
func (b *BloomBackstop) Close() error {
	return b.shards.Close()
}
