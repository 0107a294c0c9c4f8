// Package scheduler implements the batch scheduling loop: it pulls enqueued
// tasks off the queue, groups them into one batch, and dispatches each task
// to the Runner collaborator that knows how to actually perform the
// operation the task names.
package scheduler

import (
	"context"
	"time"

	"github.com/cuemby/strata/pkg/events"
	"github.com/cuemby/strata/pkg/log"
	"github.com/cuemby/strata/pkg/metrics"
	"github.com/cuemby/strata/pkg/tasks"
	"github.com/cuemby/strata/pkg/types"
	"github.com/rs/zerolog"
)

// Runner performs the side effect a task kind names. The scheduler itself
// only owns batching, status transitions, and task-level error isolation;
// it never touches index storage, the document pipeline, or snapshots
// directly.
type Runner interface {
	CreateIndex(ctx context.Context, t *types.Task) error
	DeleteIndex(ctx context.Context, t *types.Task) error
	UpdateIndex(ctx context.Context, t *types.Task) error
	SwapIndexes(ctx context.Context, t *types.Task) error
	UpdateSettings(ctx context.Context, t *types.Task) error
	CreateSnapshot(ctx context.Context, t *types.Task) error
	CreateDump(ctx context.Context, t *types.Task) error

	// ApplyDocumentBatch applies every document-mutation task in batch (all
	// guaranteed by the queue's batching policy to share one index) as a
	// single transactional pipeline write, returning each task's individual
	// outcome keyed by its uid.
	ApplyDocumentBatch(ctx context.Context, batch []*types.Task) (map[uint64]error, error)
}

// Scheduler drains the task queue in batches and dispatches each task to a
// Runner, isolating task-level failures so one bad task never aborts the
// rest of its batch.
type Scheduler struct {
	queue     *tasks.Queue
	runner    Runner
	broker    *events.Broker
	logger    zerolog.Logger
	batchSize int
	nextBatch uint64
	stopCh    chan struct{}
}

// New creates a scheduler over queue, dispatching to runner and publishing
// lifecycle events on broker. batchSize bounds how many enqueued tasks are
// pulled into a single batch; values <= 0 default to 100.
func New(queue *tasks.Queue, runner Runner, broker *events.Broker, batchSize int) *Scheduler {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Scheduler{
		queue:     queue,
		runner:    runner,
		broker:    broker,
		logger:    log.WithComponent("scheduler"),
		batchSize: batchSize,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the scheduler loop in its own goroutine.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop stops the scheduler loop.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.processBatch(context.Background()); err != nil {
				s.logger.Error().Err(err).Msg("batch processing failed")
			}
		case <-s.stopCh:
			return
		}
	}
}

// documentBatchKinds names the task kinds the queue's batching policy groups
// by shared index for one combined pipeline write via Runner.ApplyDocumentBatch.
var documentBatchKinds = map[types.TaskKind]bool{
	types.TaskKindDocumentAdditionOrUpdate: true,
	types.TaskKindDocumentDeletion:         true,
	types.TaskKindDocumentEdition:          true,
}

// processBatch pulls up to batchSize enqueued tasks and runs them as one
// batch. A nil error return means either there was nothing to do, or every
// task in the batch was individually isolated to success or failure -
// batch-level errors are limited to queue storage failures. The queue's
// NextEnqueued already groups a pending batch homogeneously per the
// batching policy, so a batch is either entirely document-mutation tasks
// against one index (applied together as a single pipeline write) or
// entirely tasks dispatched one at a time.
func (s *Scheduler) processBatch(ctx context.Context) error {
	pending, err := s.queue.NextEnqueued(s.batchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	s.nextBatch++
	batchUID := s.nextBatch
	timer := metrics.NewTimer()

	s.broker.Publish(&events.Event{Type: events.EventBatchCreated, Message: "batch created"})

	stats := types.BatchStats{TotalTasks: len(pending)}
	if documentBatchKinds[pending[0].Kind] {
		s.runDocumentBatch(ctx, pending, batchUID, &stats)
	} else {
		for _, t := range pending {
			t.BatchUID = &batchUID
			if err := s.startTask(t); err != nil {
				s.logger.Error().Err(err).Uint64("task_uid", t.UID).Msg("failed to mark task processing")
				continue
			}

			taskErr := s.dispatch(ctx, t)
			s.finishTask(t, taskErr)
			s.recordStats(&stats, t)
		}
	}

	stats.TotalDuration = timer.Duration()
	metrics.BatchesProcessedTotal.Inc()
	metrics.BatchSize.Observe(float64(len(pending)))
	timer.ObserveDuration(metrics.BatchLatency)
	s.broker.Publish(&events.Event{Type: events.EventBatchProcessed, Message: "batch processed"})

	s.logger.Info().
		Uint64("batch_uid", batchUID).
		Int("total", stats.TotalTasks).
		Int("succeeded", stats.SucceededTasks).
		Int("failed", stats.FailedTasks).
		Msg("batch processed")
	return nil
}

// runDocumentBatch starts every non-canceled task in pending, applies them
// together via Runner.ApplyDocumentBatch, and finishes each with its own
// result from that single write.
func (s *Scheduler) runDocumentBatch(ctx context.Context, pending []*types.Task, batchUID uint64, stats *types.BatchStats) {
	active := make([]*types.Task, 0, len(pending))
	for _, t := range pending {
		t.BatchUID = &batchUID
		if err := s.startTask(t); err != nil {
			s.logger.Error().Err(err).Uint64("task_uid", t.UID).Msg("failed to mark task processing")
			continue
		}
		if t.Status == types.TaskStatusCanceled {
			s.recordStats(stats, t)
			continue
		}
		active = append(active, t)
	}
	if len(active) == 0 {
		return
	}

	results, err := s.runner.ApplyDocumentBatch(ctx, active)
	for _, t := range active {
		var taskErr error
		if err != nil {
			taskErr = err
		} else {
			taskErr = results[t.UID]
		}
		s.finishTask(t, taskErr)
		s.recordStats(stats, t)
	}
}

func (s *Scheduler) recordStats(stats *types.BatchStats, t *types.Task) {
	switch t.Status {
	case types.TaskStatusSucceeded:
		stats.SucceededTasks++
	case types.TaskStatusFailed:
		stats.FailedTasks++
		metrics.TasksFailedTotal.WithLabelValues(string(t.Kind)).Inc()
	case types.TaskStatusCanceled:
		stats.CanceledTasks++
	}
}

func (s *Scheduler) startTask(t *types.Task) error {
	if t.Status == types.TaskStatusCanceled {
		return nil
	}
	now := time.Now()
	t.Status = types.TaskStatusProcessing
	t.StartedAt = &now
	if err := s.queue.Update(t); err != nil {
		return err
	}
	s.broker.Publish(&events.Event{Type: events.EventTaskStarted, Message: "task started"})
	return nil
}

// dispatch routes a task to the Runner method matching its kind. Task
// cancelation and deletion are queue-level operations and are handled here
// directly rather than via the Runner.
func (s *Scheduler) dispatch(ctx context.Context, t *types.Task) error {
	if t.Status == types.TaskStatusCanceled {
		return nil
	}
	switch t.Kind {
	case types.TaskKindIndexCreation:
		return s.runner.CreateIndex(ctx, t)
	case types.TaskKindIndexDeletion:
		return s.runner.DeleteIndex(ctx, t)
	case types.TaskKindIndexUpdate:
		return s.runner.UpdateIndex(ctx, t)
	case types.TaskKindIndexSwap:
		return s.runner.SwapIndexes(ctx, t)
	case types.TaskKindSettingsUpdate:
		return s.runner.UpdateSettings(ctx, t)
	case types.TaskKindSnapshotCreation:
		return s.runner.CreateSnapshot(ctx, t)
	case types.TaskKindDumpCreation:
		return s.runner.CreateDump(ctx, t)
	case types.TaskKindTaskCancelation:
		return s.cancelReferencedTask(t)
	case types.TaskKindTaskDeletion:
		return s.deleteReferencedTask(t)
	default:
		return &types.Error{Kind: types.ErrorKindUserError, Message: "unknown task kind: " + string(t.Kind)}
	}
}

func (s *Scheduler) cancelReferencedTask(t *types.Task) error {
	// Details round-trips through JSON in pkg/tasks' storage, so a numeric
	// uid comes back as float64 rather than the uint64 it was enqueued with.
	raw, ok := t.Details["target_uid"]
	if !ok {
		return &types.Error{Kind: types.ErrorKindUserError, Message: "taskCancelation missing target_uid"}
	}
	var targetUID uint64
	switch v := raw.(type) {
	case float64:
		targetUID = uint64(v)
	case uint64:
		targetUID = v
	default:
		return &types.Error{Kind: types.ErrorKindUserError, Message: "taskCancelation target_uid has unexpected type"}
	}
	return s.queue.Cancel(targetUID, t.UID)
}

// deleteReferencedTask implements TaskKindTaskDeletion: the only operation
// that actually reclaims a finished task's queue record. The target must
// already be in a terminal status; deleting a task still enqueued or
// processing would race the scheduler that owns it.
func (s *Scheduler) deleteReferencedTask(t *types.Task) error {
	raw, ok := t.Details["target_uid"]
	if !ok {
		return &types.Error{Kind: types.ErrorKindUserError, Message: "taskDeletion missing target_uid"}
	}
	var targetUID uint64
	switch v := raw.(type) {
	case float64:
		targetUID = uint64(v)
	case uint64:
		targetUID = v
	default:
		return &types.Error{Kind: types.ErrorKindUserError, Message: "taskDeletion target_uid has unexpected type"}
	}

	target, err := s.queue.Get(targetUID)
	if err != nil {
		return err
	}
	if !target.Status.Terminal() {
		return &types.Error{Kind: types.ErrorKindUserError, Message: "taskDeletion target is not in a terminal status"}
	}
	return s.queue.Delete(targetUID)
}

func (s *Scheduler) finishTask(t *types.Task, err error) {
	if t.Status == types.TaskStatusCanceled {
		s.broker.Publish(&events.Event{Type: events.EventTaskCanceled, Message: "task canceled"})
		_ = s.queue.Update(t)
		return
	}

	now := time.Now()
	t.FinishedAt = &now
	if err != nil {
		t.Status = types.TaskStatusFailed
		t.Error = toTaskError(err)
		s.broker.Publish(&events.Event{Type: events.EventTaskFailed, Message: err.Error()})
	} else {
		t.Status = types.TaskStatusSucceeded
		s.broker.Publish(&events.Event{Type: events.EventTaskSucceeded, Message: "task succeeded"})
	}
	if updateErr := s.queue.Update(t); updateErr != nil {
		s.logger.Error().Err(updateErr).Uint64("task_uid", t.UID).Msg("failed to persist task result")
	}
}

func toTaskError(err error) *types.Error {
	var taskErr *types.Error
	if asTaskError(err, &taskErr) {
		return taskErr
	}
	return &types.Error{Kind: types.ErrorKindInternal, Message: err.Error(), Cause: err}
}

func asTaskError(err error, target **types.Error) bool {
	te, ok := err.(*types.Error)
	if !ok {
		return false
	}
	*target = te
	return true
}
