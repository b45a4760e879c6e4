package frontier

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/michaelrauh/ortho/interner"
	"github.com/michaelrauh/ortho/ortho"
)

func TestInsertAddsFirstEntry(t *testing.T) {
	f := New()
	o := ortho.New(0)
	child, ok := o.Add(interner.Token(1))
	require.True(t, ok)

	require.True(t, f.Insert(child))
	require.Equal(t, 1, f.Len())
	require.True(t, f.Contains(child.ID()))
}

// TestInsertRejectsDominatedEntry covers spec.md §8 scenario 6: a less-
// filled ortho whose filled slots are a sub-assignment of an already
// present, more-filled ortho must not be inserted as a separate lead.
func TestInsertRejectsDominatedEntry(t *testing.T) {
	f := New()
	o := ortho.New(0)
	partial, ok := o.Add(interner.Token(1))
	require.True(t, ok)
	moreFilled, ok := partial.Add(interner.Token(2))
	require.True(t, ok)

	require.True(t, f.Insert(moreFilled))
	require.False(t, f.Insert(partial))
	require.Equal(t, 1, f.Len())
	require.True(t, f.Contains(moreFilled.ID()))
}

func TestInsertReplacesDominatedEntry(t *testing.T) {
	f := New()
	o := ortho.New(0)
	partial, ok := o.Add(interner.Token(1))
	require.True(t, ok)
	moreFilled, ok := partial.Add(interner.Token(2))
	require.True(t, ok)

	require.True(t, f.Insert(partial))
	require.True(t, f.Insert(moreFilled))
	require.Equal(t, 1, f.Len())
	require.False(t, f.Contains(partial.ID()))
	require.True(t, f.Contains(moreFilled.ID()))
}

func TestRemapAllPreservesCountAndBumpsVersion(t *testing.T) {
	f := New()
	o := ortho.New(0)
	child, ok := o.Add(interner.Token(3))
	require.True(t, ok)
	f.Insert(child)

	remap := map[interner.Token]interner.Token{3: 30}
	remapped := f.RemapAll(remap, 1)

	require.Equal(t, f.Len(), remapped.Len())
	var found bool
	remapped.Each(func(o *ortho.Ortho) {
		if o.Version() == 1 {
			found = true
		}
	})
	require.True(t, found)
}
