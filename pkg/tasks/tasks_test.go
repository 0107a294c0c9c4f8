package tasks

import (
	"testing"

	"github.com/cuemby/strata/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAssignsMonotonicUID(t *testing.T) {
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	defer q.Close()

	t1, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)
	t2, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)

	require.Equal(t, uint64(0), t1.UID)
	require.Equal(t, uint64(1), t2.UID)
	require.Equal(t, types.TaskStatusEnqueued, t1.Status)
}

func TestListByIndexAndStatus(t *testing.T) {
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	defer q.Close()

	_, err = q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)
	_, err = q.Enqueue(&types.Task{IndexUID: "books", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)

	movies, err := q.ListByIndex("movies")
	require.NoError(t, err)
	require.Len(t, movies, 1)

	enqueued, err := q.ListByStatus(types.TaskStatusEnqueued)
	require.NoError(t, err)
	require.Len(t, enqueued, 2)
}

func TestUpdateMovesStatusIndex(t *testing.T) {
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	defer q.Close()

	task, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)

	task.Status = types.TaskStatusSucceeded
	require.NoError(t, q.Update(task))

	enqueued, err := q.ListByStatus(types.TaskStatusEnqueued)
	require.NoError(t, err)
	require.Empty(t, enqueued)

	succeeded, err := q.ListByStatus(types.TaskStatusSucceeded)
	require.NoError(t, err)
	require.Len(t, succeeded, 1)
}

func TestCancelEnqueuedTask(t *testing.T) {
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	defer q.Close()

	task, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)

	require.NoError(t, q.Cancel(task.UID, 99))

	got, err := q.Get(task.UID)
	require.NoError(t, err)
	require.Equal(t, types.TaskStatusCanceled, got.Status)
	require.NotNil(t, got.CanceledBy)
	require.Equal(t, uint64(99), *got.CanceledBy)
}

func TestCancelAlreadyFinishedTaskFails(t *testing.T) {
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	defer q.Close()

	task, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)
	task.Status = types.TaskStatusSucceeded
	require.NoError(t, q.Update(task))

	require.Error(t, q.Cancel(task.UID, 1))
}

func TestAllTasksSpansEveryStatus(t *testing.T) {
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	defer q.Close()

	enqueuedTask, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)

	doneTask, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)
	doneTask.Status = types.TaskStatusSucceeded
	require.NoError(t, q.Update(doneTask))

	all, err := q.AllTasks()
	require.NoError(t, err)
	require.Len(t, all, 2)

	uids := map[uint64]bool{}
	for _, t := range all {
		uids[t.UID] = true
	}
	require.True(t, uids[enqueuedTask.UID])
	require.True(t, uids[doneTask.UID])
}

func TestCountsByStatus(t *testing.T) {
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	defer q.Close()

	_, err = q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)
	failed, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)
	failed.Status = types.TaskStatusFailed
	require.NoError(t, q.Update(failed))

	counts, err := q.CountsByStatus()
	require.NoError(t, err)
	require.EqualValues(t, 1, counts[string(types.TaskStatusEnqueued)])
	require.EqualValues(t, 1, counts[string(types.TaskStatusFailed)])
}

func TestDeleteRemovesTerminalTask(t *testing.T) {
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	defer q.Close()

	task, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)
	task.Status = types.TaskStatusSucceeded
	require.NoError(t, q.Update(task))

	require.NoError(t, q.Delete(task.UID))

	_, err = q.Get(task.UID)
	require.ErrorIs(t, err, ErrNotFound)

	succeeded, err := q.ListByStatus(types.TaskStatusSucceeded)
	require.NoError(t, err)
	require.Empty(t, succeeded)

	byIndex, err := q.ListByIndex("movies")
	require.NoError(t, err)
	require.Empty(t, byIndex)
}

func TestDeleteNonTerminalTaskFails(t *testing.T) {
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	defer q.Close()

	task, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)

	require.Error(t, q.Delete(task.UID))
}

func TestNextEnqueuedIsolatesSoloKind(t *testing.T) {
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	defer q.Close()

	_, err = q.Enqueue(&types.Task{Kind: types.TaskKindSnapshotCreation})
	require.NoError(t, err)
	_, err = q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)

	batch, err := q.NextEnqueued(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.Equal(t, types.TaskKindSnapshotCreation, batch[0].Kind)
}

func TestNextEnqueuedGroupsLifecycleOncePerIndex(t *testing.T) {
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	defer q.Close()

	_, err = q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindIndexCreation})
	require.NoError(t, err)
	_, err = q.Enqueue(&types.Task{IndexUID: "books", Kind: types.TaskKindIndexDeletion})
	require.NoError(t, err)
	_, err = q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindIndexUpdate})
	require.NoError(t, err)

	batch, err := q.NextEnqueued(10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	require.Equal(t, "movies", batch[0].IndexUID)
	require.Equal(t, "books", batch[1].IndexUID)
}

func TestNextEnqueuedGroupsDocumentMutationsBySameIndex(t *testing.T) {
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	defer q.Close()

	_, err = q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)
	_, err = q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentDeletion})
	require.NoError(t, err)
	_, err = q.Enqueue(&types.Task{IndexUID: "books", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)

	batch, err := q.NextEnqueued(10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	for _, task := range batch {
		require.Equal(t, "movies", task.IndexUID)
	}
}

func TestEnvExposesUnderlyingEnvironment(t *testing.T) {
	q, err := Open(t.TempDir())
	require.NoError(t, err)
	defer q.Close()

	require.NotNil(t, q.Env())
}
