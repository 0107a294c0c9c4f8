package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cuemby/strata/pkg/events"
	"github.com/cuemby/strata/pkg/tasks"
	"github.com/cuemby/strata/pkg/types"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	created      []string
	failKind     types.TaskKind
	batchedUIDs  []uint64
	failBatchAll bool
}

func (f *fakeRunner) CreateIndex(ctx context.Context, t *types.Task) error {
	if f.failKind == types.TaskKindIndexCreation {
		return fmt.Errorf("boom")
	}
	f.created = append(f.created, t.IndexUID)
	return nil
}
func (f *fakeRunner) DeleteIndex(ctx context.Context, t *types.Task) error    { return nil }
func (f *fakeRunner) UpdateIndex(ctx context.Context, t *types.Task) error    { return nil }
func (f *fakeRunner) SwapIndexes(ctx context.Context, t *types.Task) error    { return nil }
func (f *fakeRunner) UpdateSettings(ctx context.Context, t *types.Task) error { return nil }
func (f *fakeRunner) CreateSnapshot(ctx context.Context, t *types.Task) error { return nil }
func (f *fakeRunner) CreateDump(ctx context.Context, t *types.Task) error     { return nil }

func (f *fakeRunner) ApplyDocumentBatch(ctx context.Context, batch []*types.Task) (map[uint64]error, error) {
	if f.failBatchAll {
		return nil, fmt.Errorf("boom")
	}
	results := make(map[uint64]error, len(batch))
	for _, t := range batch {
		f.batchedUIDs = append(f.batchedUIDs, t.UID)
		results[t.UID] = nil
	}
	return results, nil
}

func newTestScheduler(t *testing.T, runner Runner) (*Scheduler, *tasks.Queue) {
	t.Helper()
	q, err := tasks.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	return New(q, runner, broker, 10), q
}

func TestProcessBatchRunsEnqueuedTasks(t *testing.T) {
	runner := &fakeRunner{}
	s, q := newTestScheduler(t, runner)

	_, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindIndexCreation})
	require.NoError(t, err)

	require.NoError(t, s.processBatch(context.Background()))

	require.Equal(t, []string{"movies"}, runner.created)

	succeeded, err := q.ListByStatus(types.TaskStatusSucceeded)
	require.NoError(t, err)
	require.Len(t, succeeded, 1)
	require.NotNil(t, succeeded[0].StartedAt)
	require.NotNil(t, succeeded[0].FinishedAt)
	require.NotNil(t, succeeded[0].BatchUID)
}

func TestProcessBatchIsolatesTaskFailure(t *testing.T) {
	runner := &fakeRunner{failKind: types.TaskKindIndexCreation}
	s, q := newTestScheduler(t, runner)

	_, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindIndexCreation})
	require.NoError(t, err)
	_, err = q.Enqueue(&types.Task{IndexUID: "books", Kind: types.TaskKindIndexDeletion})
	require.NoError(t, err)

	require.NoError(t, s.processBatch(context.Background()))

	failed, err := q.ListByStatus(types.TaskStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, types.ErrorKindInternal, failed[0].Error.Kind)

	succeeded, err := q.ListByStatus(types.TaskStatusSucceeded)
	require.NoError(t, err)
	require.Len(t, succeeded, 1)
}

func TestProcessBatchSkipsCanceledTask(t *testing.T) {
	runner := &fakeRunner{}
	s, q := newTestScheduler(t, runner)

	task, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindIndexCreation})
	require.NoError(t, err)
	require.NoError(t, q.Cancel(task.UID, 0))

	require.NoError(t, s.processBatch(context.Background()))
	require.Empty(t, runner.created)
}

func TestProcessBatchWithNoTasksIsNoop(t *testing.T) {
	s, _ := newTestScheduler(t, &fakeRunner{})
	require.NoError(t, s.processBatch(context.Background()))
}

func TestProcessBatchCombinesDocumentMutationsIntoOneWrite(t *testing.T) {
	runner := &fakeRunner{}
	s, q := newTestScheduler(t, runner)

	_, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)
	_, err = q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentDeletion})
	require.NoError(t, err)

	require.NoError(t, s.processBatch(context.Background()))

	require.Len(t, runner.batchedUIDs, 2)

	succeeded, err := q.ListByStatus(types.TaskStatusSucceeded)
	require.NoError(t, err)
	require.Len(t, succeeded, 2)
	require.Equal(t, succeeded[0].BatchUID, succeeded[1].BatchUID)
}

func TestProcessBatchFailsWholeDocumentBatchTogether(t *testing.T) {
	runner := &fakeRunner{failBatchAll: true}
	s, q := newTestScheduler(t, runner)

	_, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentAdditionOrUpdate})
	require.NoError(t, err)
	_, err = q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindDocumentDeletion})
	require.NoError(t, err)

	require.NoError(t, s.processBatch(context.Background()))

	failed, err := q.ListByStatus(types.TaskStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 2)
}

func TestProcessBatchDeletesTerminalTask(t *testing.T) {
	runner := &fakeRunner{}
	s, q := newTestScheduler(t, runner)

	target, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindIndexCreation})
	require.NoError(t, err)
	target.Status = types.TaskStatusSucceeded
	require.NoError(t, q.Update(target))

	_, err = q.Enqueue(&types.Task{
		Kind:    types.TaskKindTaskDeletion,
		Details: map[string]interface{}{"target_uid": target.UID},
	})
	require.NoError(t, err)

	require.NoError(t, s.processBatch(context.Background()))

	_, err = q.Get(target.UID)
	require.Error(t, err)
}

func TestProcessBatchTaskDeletionFailsForNonTerminalTarget(t *testing.T) {
	runner := &fakeRunner{}
	s, q := newTestScheduler(t, runner)

	target, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindIndexCreation})
	require.NoError(t, err)
	target.Status = types.TaskStatusProcessing
	require.NoError(t, q.Update(target))

	_, err = q.Enqueue(&types.Task{
		Kind:    types.TaskKindTaskDeletion,
		Details: map[string]interface{}{"target_uid": target.UID},
	})
	require.NoError(t, err)

	require.NoError(t, s.processBatch(context.Background()))

	failed, err := q.ListByStatus(types.TaskStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, types.TaskKindTaskDeletion, failed[0].Kind)
}

func TestStartStopDoesNotPanic(t *testing.T) {
	s, q := newTestScheduler(t, &fakeRunner{})
	_, err := q.Enqueue(&types.Task{IndexUID: "movies", Kind: types.TaskKindIndexCreation})
	require.NoError(t, err)

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()
}
