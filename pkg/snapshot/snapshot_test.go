package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/strata/pkg/index"
	"github.com/cuemby/strata/pkg/indexing"
	"github.com/cuemby/strata/pkg/tasks"
	"github.com/cuemby/strata/pkg/types"
	"github.com/stretchr/testify/require"
)

func seedIndexes(t *testing.T) (map[string]*index.Index, *tasks.Queue) {
	t.Helper()
	indexDir := t.TempDir()
	idx, err := index.Open(indexDir, "movies")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	p := indexing.New(idx, indexing.Config{Workers: 1})
	_, _, err = p.Apply(context.Background(), []indexing.DocumentChange{
		{Kind: indexing.ChangeInsertOrUpdate, ExternalID: "1", Document: types.Document{"title": "Shawshank"}},
	})
	require.NoError(t, err)

	queue, err := tasks.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })
	_, err = queue.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)

	return map[string]*index.Index{"movies": idx}, queue
}

func TestCreateSnapshotProducesRestorableCopy(t *testing.T) {
	indexes, queue := seedIndexes(t)
	m := NewManager(filepath.Join(t.TempDir(), "snapshots"))

	path, err := m.Create(indexes, queue)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(path, "tasks.db"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(path, "indexes", "movies", "data.bolt"))
	require.NoError(t, err)

	restored, err := index.Open(filepath.Join(path, "indexes"), "movies")
	require.NoError(t, err)
	defer restored.Close()
	n, err := restored.NumberOfDocuments()
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestRecoverTmpRemovesStaleSnapshots(t *testing.T) {
	snapshotDir := t.TempDir()
	tmpDir := filepath.Join(snapshotDir, "tmp", "snapshot-123")
	require.NoError(t, os.MkdirAll(tmpDir, 0o755))

	m := NewManager(snapshotDir)
	require.NoError(t, m.RecoverTmp())

	_, err := os.Stat(tmpDir)
	require.True(t, os.IsNotExist(err))
}

func TestDumpCreateProducesArchive(t *testing.T) {
	indexes, queue := seedIndexes(t)
	dm := NewDumpManager(filepath.Join(t.TempDir(), "dumps"))

	path, err := dm.Create(indexes, queue)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}
