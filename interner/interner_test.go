package interner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternTextGrowsVocabularyAndVersion(t *testing.T) {
	in := New()
	require.Equal(t, uint64(0), in.Version())

	impacted, changed := in.InternText("the cat sat")
	require.True(t, changed)
	require.Len(t, impacted, 3)
	require.Equal(t, uint64(1), in.Version())
	require.Equal(t, 3, in.VocabularySize())
}

func TestInternTextRepeatedSentenceDoesNotBumpVersion(t *testing.T) {
	in := New()
	_, changed := in.InternText("the cat sat.")
	require.True(t, changed)
	v := in.Version()

	_, changed = in.InternText("the cat sat.")
	require.False(t, changed)
	require.Equal(t, v, in.Version())
}

func TestCompletionsReturnsObservedContinuations(t *testing.T) {
	in := New()
	in.InternText("the cat sat")

	the, _ := in.TokenOf("the")
	cat, _ := in.TokenOf("cat")

	completions := in.Completions([]Token{the})
	require.True(t, completions.Contains(uint32(cat)))
}

func TestCompletionsOnUnknownPrefixIsEmpty(t *testing.T) {
	in := New()
	in.InternText("the cat sat")
	unknown, _ := in.TokenOf("sat")
	completions := in.Completions([]Token{unknown, unknown})
	require.True(t, completions.IsEmpty())
}

func TestIntersectCombinesMultipleRequiredPrefixes(t *testing.T) {
	in := New()
	in.InternText("the cat sat. a cat ran.")

	the, _ := in.TokenOf("the")
	a, _ := in.TokenOf("a")
	cat, _ := in.TokenOf("cat")

	// Both "the" and "a" are followed by "cat", so intersecting their
	// completions should retain "cat".
	result := in.Intersect([][]Token{{the}, {a}}, nil)
	require.True(t, result.Contains(uint32(cat)))
}

func TestIntersectTreatsUnknownRequiredPrefixAsEmpty(t *testing.T) {
	in := New()
	in.InternText("the cat sat")
	the, _ := in.TokenOf("the")
	cat, _ := in.TokenOf("cat")

	// [cat, the] never occurs in the corpus, so it has no index entry.
	result := in.Intersect([][]Token{{the}, {cat, the}}, nil)
	require.True(t, result.IsEmpty())
}

func TestExportAllAndLoadSnapshotRoundTrip(t *testing.T) {
	in := New()
	in.InternText("the cat sat. the dog ran.")

	tokens, version, entries := in.ExportAll()
	restored := LoadSnapshot(tokens, version, entries)

	require.Equal(t, in.VocabularySize(), restored.VocabularySize())
	require.Equal(t, in.Version(), restored.Version())

	the, _ := in.TokenOf("the")
	cat, _ := in.TokenOf("cat")
	require.True(t, restored.Completions([]Token{the}).Contains(uint32(cat)))
}

func TestRemapIsIdentityUnderAppendOnlyGrowth(t *testing.T) {
	in := New()
	in.InternText("the cat sat")
	remap := in.Remap()
	for tok, mapped := range remap {
		require.Equal(t, tok, mapped)
	}
}
