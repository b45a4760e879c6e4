package snapshot

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/michaelrauh/ortho/frontier"
	"github.com/michaelrauh/ortho/interner"
	"github.com/michaelrauh/ortho/ortho"
)

func buildSample(t *testing.T) Snapshot {
	t.Helper()
	in := interner.New()
	_, changed := in.InternText("the cat sat. the dog ran.")
	require.True(t, changed)

	fr := frontier.New()
	o := ortho.New(in.Version())
	tok, ok := in.TokenOf("the")
	require.True(t, ok)
	child, ok := o.Add(tok)
	require.True(t, ok)
	fr.Insert(child)

	return Snapshot{Interner: in, Frontier: fr}
}

// TestSaveLoadRoundTrip is the literal property from spec.md §6 and §8
// scenario 5: Save(Load(s)) must reproduce s's content exactly, and must
// do so byte-for-byte when saved twice in a row.
func TestSaveLoadRoundTrip(t *testing.T) {
	s := buildSample(t)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, s))

	loaded, err := Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	require.Equal(t, s.Interner.VocabularySize(), loaded.Interner.VocabularySize())
	require.Equal(t, s.Interner.Version(), loaded.Interner.Version())
	require.Equal(t, s.Frontier.Len(), loaded.Frontier.Len())

	var rebuf bytes.Buffer
	require.NoError(t, Save(&rebuf, loaded))
	require.Equal(t, buf.Bytes(), rebuf.Bytes(), "Save(Load(s)) must reproduce s byte-for-byte")
}

func TestLoadRejectsBadMagic(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 0, 1}))
	require.Error(t, err)
}

func TestRoundTripPreservesCompletions(t *testing.T) {
	s := buildSample(t)
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, s))

	loaded, err := Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	tok, ok := loaded.Interner.TokenOf("the")
	require.True(t, ok)
	completions := loaded.Interner.Completions(nil)
	require.True(t, completions.Contains(uint32(tok)))
}
