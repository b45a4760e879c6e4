package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/michaelrauh/ortho/frontier"
	"github.com/michaelrauh/ortho/interner"
	"github.com/michaelrauh/ortho/ortho"
	"github.com/michaelrauh/ortho/seenstore"
	"github.com/michaelrauh/ortho/workqueue"
)

func newPool(t *testing.T, in *interner.Interner) (*Pool, *workqueue.WorkQueue, *frontier.Frontier) {
	t.Helper()
	q, err := workqueue.New(workqueue.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	seen, err := seenstore.NewGenerational(seenstore.GenerationalConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { seen.Close() })

	fr := frontier.New()
	p := &Pool{
		Interner: in,
		Queue:    q,
		Seen:     seen,
		Frontier: fr,
		Workers:  2,
	}
	return p, q, fr
}

// TestRunExpandsSeedIntoCompleteOrthos drives a full branch-and-bound run
// over a tiny corpus until the queue drains, then checks the (2,2) seed
// reached completion in the Frontier (spec.md §4.5, §8 scenario 1).
func TestRunExpandsSeedIntoCompleteOrthos(t *testing.T) {
	in := interner.New()
	_, changed := in.InternText("the cat sat. the dog sat.")
	require.True(t, changed)

	p, q, fr := newPool(t, in)
	require.NoError(t, q.Push(ortho.New(in.Version())))

	require.NoError(t, p.Run(context.Background()))
	require.True(t, q.Empty())
	require.Greater(t, fr.Len(), 0)
}

// TestHandleChildDropsAlreadySeenID confirms a child whose ID has already
// been observed is neither pushed back onto the queue nor inserted into
// the Frontier (spec.md §4.3/§4.5 dedup contract).
func TestHandleChildDropsAlreadySeenID(t *testing.T) {
	in := interner.New()
	in.InternText("the cat sat")

	p, q, fr := newPool(t, in)

	o := ortho.New(in.Version())
	tok, ok := in.TokenOf("the")
	require.True(t, ok)
	child, ok := o.Add(tok)
	require.True(t, ok)

	require.NoError(t, p.handleChild(child))
	require.Equal(t, 1, q.Len())

	require.NoError(t, p.handleChild(child))
	require.Equal(t, 1, q.Len())
	require.Equal(t, 0, fr.Len())
}

// TestProcessOneRemapsStaleVersion exercises the version-drift remap path:
// a popped ortho tagged with an old Interner version is remapped to the
// current version before its requirements are computed.
func TestProcessOneRemapsStaleVersion(t *testing.T) {
	in := interner.New()
	in.InternText("the cat sat")
	staleVersion := in.Version()

	in.InternText("a dog ran")

	p, q, _ := newPool(t, in)

	stale := ortho.New(staleVersion)
	require.NoError(t, p.processOne(context.Background(), stale))
	require.Equal(t, in.Version(), p.Interner.Version())

	// processOne should have pushed at least one candidate expansion built
	// under the *current* version, not the stale one.
	if q.Len() > 0 {
		got, ok, err := q.Pop()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, in.Version(), got.Version())
	}
}

// TestRunDefaultsWorkersAndBatchSize confirms a zero-valued Pool still
// makes progress instead of looping forever on an empty batch size.
func TestRunDefaultsWorkersAndBatchSize(t *testing.T) {
	in := interner.New()
	in.InternText("the cat sat")

	p, q, _ := newPool(t, in)
	p.Workers = 0
	p.BatchSize = 0

	require.NoError(t, q.Push(ortho.New(in.Version())))
	require.NoError(t, p.Run(context.Background()))
	require.True(t, q.Empty())
}

func TestBestTracksHighestScoringComplete(t *testing.T) {
	in := interner.New()
	in.InternText("the cat sat. the dog sat.")

	p, _, _ := newPool(t, in)
	require.Nil(t, p.Best())

	o := ortho.New(in.Version())
	the, _ := in.TokenOf("the")
	cat, _ := in.TokenOf("cat")
	sat, _ := in.TokenOf("sat")
	dog, _ := in.TokenOf("dog")

	a, ok := o.Add(the)
	require.True(t, ok)
	a, ok = a.Add(cat)
	require.True(t, ok)
	a, ok = a.Add(sat)
	require.True(t, ok)
	a, ok = a.Add(dog)
	require.True(t, ok)
	require.Equal(t, ortho.Complete, a.State())

	p.considerBest(a)
	require.Equal(t, a.ID(), p.Best().ID())
}
