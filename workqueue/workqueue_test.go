package workqueue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/michaelrauh/ortho/interner"
	"github.com/michaelrauh/ortho/ortho"
)

func TestPushPopPreservesFIFOOrderInMemory(t *testing.T) {
	q, err := New(Config{Dir: t.TempDir(), Capacity: 64})
	require.NoError(t, err)
	defer q.Close()

	a := ortho.New(0)
	b, ok := a.Add(interner.Token(1))
	require.True(t, ok)

	require.NoError(t, q.Push(a))
	require.NoError(t, q.Push(b))

	got1, ok, err := q.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, a.ID(), got1.ID())

	got2, ok, err := q.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, b.ID(), got2.ID())
}

func TestPopOnEmptyQueueReturnsFalse(t *testing.T) {
	q, err := New(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	defer q.Close()

	_, ok, err := q.Pop()
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, q.Empty())
}

// TestSpillToChunkAndRefill forces overflow to disk with a capacity-1
// ring (the first push fills the ring, the second spills), then
// verifies a round trip through the zstd-compressed CBOR chunk file
// (spec.md §4.4) by closing and reopening the queue directory.
func TestSpillToChunkAndRefill(t *testing.T) {
	dir := t.TempDir()
	q, err := New(Config{Dir: dir, Capacity: 1, MaxRecordsPerChunk: 4})
	require.NoError(t, err)

	first := ortho.New(5)
	o := ortho.New(5)
	second, ok := o.Add(interner.Token(9))
	require.True(t, ok)

	require.NoError(t, q.Push(first))
	require.NoError(t, q.Push(second)) // ring is full: spills to a chunk file

	// Drain the in-memory ring entry so only the spilled item remains.
	got, ok, err := q.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first.ID(), got.ID())

	require.NoError(t, q.Close())

	reopened, err := New(Config{Dir: dir, Capacity: 1, MaxRecordsPerChunk: 4})
	require.NoError(t, err)
	defer reopened.Close()

	got2, ok, err := reopened.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, second.ID(), got2.ID())
	require.Equal(t, second.Version(), got2.Version())
}

func TestLenCountsOnlyInMemoryRing(t *testing.T) {
	q, err := New(Config{Dir: t.TempDir(), Capacity: 64})
	require.NoError(t, err)
	defer q.Close()

	require.Equal(t, 0, q.Len())
	require.NoError(t, q.Push(ortho.New(0)))
	require.Equal(t, 1, q.Len())
}
