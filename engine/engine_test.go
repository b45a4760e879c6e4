package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenSeedsEmptyQueueAndSecondOpenIsLocked(t *testing.T) {
	dir := t.TempDir()

	e, err := Open(dir)
	require.NoError(t, err)
	require.False(t, e.queue.Empty(), "Open must seed an empty queue")

	_, err = Open(dir)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, e.Close())

	e2, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, e2.Close())
}

func TestIngestGrowsVocabularyAndRepeatedTextKeepsVersion(t *testing.T) {
	e, err := Open(t.TempDir())
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Ingest("the cat sat."))
	require.Equal(t, 3, e.interner.VocabularySize())

	v := e.interner.Version()
	require.NoError(t, e.Ingest("the cat sat."))
	require.Equal(t, v, e.interner.Version(), "repeated text must not bump the version")
}

// TestRunProducesReloadableSnapshot covers spec.md §8 scenario 5: a
// completed Run leaves behind a snapshot that a fresh Open of the same
// directory can resume from with equivalent Frontier/vocabulary state.
func TestRunProducesReloadableSnapshot(t *testing.T) {
	dir := t.TempDir()

	e, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, e.Ingest("the cat sat. the dog sat."))

	require.NoError(t, e.Run(context.Background()))
	require.NoError(t, e.Close())

	require.FileExists(t, filepath.Join(dir, "snapshot.bin"))

	resumed, err := Open(dir)
	require.NoError(t, err)
	defer resumed.Close()

	require.Equal(t, e.interner.VocabularySize(), resumed.interner.VocabularySize())
	require.Equal(t, e.frontier.Len(), resumed.frontier.Len())
}

func TestRunRespectsCancellation(t *testing.T) {
	e, err := Open(t.TempDir())
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Ingest("the cat sat. the dog sat."))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = e.Run(ctx)
	require.Error(t, err)
	require.FileExists(t, filepath.Join(e.dir, "snapshot.bin"))
}
