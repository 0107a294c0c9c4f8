// Package tasks owns enqueue, uid allocation, persistence, and the
// secondary indexes of the task queue.
package tasks

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/strata/pkg/kv"
	"github.com/cuemby/strata/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketTasks    = []byte("tasks")     // uid (BE8) -> json Task
	bucketByIndex  = []byte("by_index")  // indexUID\x00uid (BE8) -> empty
	bucketByStatus = []byte("by_status") // status\x00uid (BE8) -> empty
	bucketByKind   = []byte("by_kind")   // kind\x00uid (BE8) -> empty
	bucketMeta     = []byte("meta")      // "next_uid" -> uint64 BE
)

var keyNextUID = []byte("next_uid")

// Queue is the durable task queue backing the scheduler.
type Queue struct {
	env *kv.Env
}

// Open opens (creating if absent) the task queue database under dataDir.
func Open(dataDir string) (*Queue, error) {
	env, err := kv.Open(filepath.Join(dataDir, "tasks.db"),
		bucketTasks, bucketByIndex, bucketByStatus, bucketByKind, bucketMeta)
	if err != nil {
		return nil, fmt.Errorf("tasks: open queue: %w", err)
	}
	return &Queue{env: env}, nil
}

// Close releases the queue's database handle.
func (q *Queue) Close() error { return q.env.Close() }

// Env exposes the underlying environment for pkg/snapshot's CopyToPath use.
func (q *Queue) Env() *kv.Env { return q.env }

func be8(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func composite(prefix string, uid uint64) []byte {
	b := make([]byte, 0, len(prefix)+1+8)
	b = append(b, []byte(prefix)...)
	b = append(b, 0)
	b = append(b, be8(uid)...)
	return b
}

// Enqueue assigns the next uid, sets EnqueuedAt and Status, persists the
// task, and updates every secondary index in one write transaction.
func (q *Queue) Enqueue(t *types.Task) (*types.Task, error) {
	err := q.env.Update(func(tx *bolt.Tx) error {
		uid, err := nextUID(tx)
		if err != nil {
			return err
		}
		t.UID = uid
		t.Status = types.TaskStatusEnqueued
		t.EnqueuedAt = time.Now()

		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("tasks: marshal task: %w", err)
		}
		if err := tx.Bucket(bucketTasks).Put(be8(uid), data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketByIndex).Put(composite(t.IndexUID, uid), nil); err != nil {
			return err
		}
		if err := tx.Bucket(bucketByStatus).Put(composite(string(t.Status), uid), nil); err != nil {
			return err
		}
		return tx.Bucket(bucketByKind).Put(composite(string(t.Kind), uid), nil)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func nextUID(tx *bolt.Tx) (uint64, error) {
	b := tx.Bucket(bucketMeta)
	var next uint64
	if v := b.Get(keyNextUID); v != nil {
		next = binary.BigEndian.Uint64(v) + 1
	}
	if err := b.Put(keyNextUID, be8(next)); err != nil {
		return 0, err
	}
	return next, nil
}

// Get fetches a task by uid.
func (q *Queue) Get(uid uint64) (*types.Task, error) {
	var t types.Task
	err := q.env.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTasks).Get(be8(uid))
		if data == nil {
			return fmt.Errorf("tasks: uid %d: %w", uid, ErrNotFound)
		}
		return json.Unmarshal(data, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ErrNotFound is returned by Get for an unknown task uid.
var ErrNotFound = fmt.Errorf("task not found")

// ListByIndex returns every task enqueued against indexUID, oldest first.
func (q *Queue) ListByIndex(indexUID string) ([]*types.Task, error) {
	return q.listByPrefix(bucketByIndex, indexUID)
}

// ListByStatus returns every task currently in status.
func (q *Queue) ListByStatus(status types.TaskStatus) ([]*types.Task, error) {
	return q.listByPrefix(bucketByStatus, string(status))
}

func (q *Queue) listByPrefix(bucket []byte, prefix string) ([]*types.Task, error) {
	var out []*types.Task
	pfx := append([]byte(prefix), 0)
	err := q.env.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		tb := tx.Bucket(bucketTasks)
		for k, _ := c.Seek(pfx); k != nil && hasPrefix(k, pfx); k, _ = c.Next() {
			uid := binary.BigEndian.Uint64(k[len(pfx):])
			data := tb.Get(be8(uid))
			if data == nil {
				continue
			}
			var t types.Task
			if err := json.Unmarshal(data, &t); err != nil {
				return err
			}
			out = append(out, &t)
		}
		return nil
	})
	return out, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// soloKinds run strictly alone in their own batch: canceling or deleting a
// task, and the whole-engine snapshot/dump/swap operations, are each
// incompatible with running concurrently alongside anything else.
var soloKinds = map[types.TaskKind]bool{
	types.TaskKindTaskCancelation:  true,
	types.TaskKindTaskDeletion:     true,
	types.TaskKindSnapshotCreation: true,
	types.TaskKindDumpCreation:     true,
	types.TaskKindIndexSwap:        true,
}

// lifecycleKinds group at most one task per index into a batch: two
// lifecycle tasks against the same index must not run concurrently, but
// lifecycle tasks against different indexes are independent.
var lifecycleKinds = map[types.TaskKind]bool{
	types.TaskKindIndexCreation:  true,
	types.TaskKindIndexDeletion:  true,
	types.TaskKindIndexUpdate:    true,
	types.TaskKindSettingsUpdate: true,
}

// documentKinds are the document-mutation task kinds the scheduler combines
// into one transactional pipeline write when they share an index.
var documentKinds = map[types.TaskKind]bool{
	types.TaskKindDocumentAdditionOrUpdate: true,
	types.TaskKindDocumentDeletion:         true,
	types.TaskKindDocumentEdition:          true,
}

// NextEnqueued selects the next batch of enqueued tasks, oldest uid first,
// honoring the batching policy: a solo-kind task runs entirely alone; a run
// of lifecycle tasks groups at most one task per index; a run of
// document-mutation tasks groups only while they share one index, so the
// scheduler can apply them as a single transactional pipeline write.
func (q *Queue) NextEnqueued(limit int) ([]*types.Task, error) {
	all, err := q.ListByStatus(types.TaskStatusEnqueued)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}

	first := all[0]
	switch {
	case soloKinds[first.Kind]:
		return all[:1], nil

	case lifecycleKinds[first.Kind]:
		seenIndex := make(map[string]bool)
		var batch []*types.Task
		for _, t := range all {
			if !lifecycleKinds[t.Kind] || seenIndex[t.IndexUID] {
				break
			}
			seenIndex[t.IndexUID] = true
			batch = append(batch, t)
			if limit > 0 && len(batch) >= limit {
				break
			}
		}
		return batch, nil

	case documentKinds[first.Kind]:
		indexUID := first.IndexUID
		var batch []*types.Task
		for _, t := range all {
			if !documentKinds[t.Kind] || t.IndexUID != indexUID {
				break
			}
			batch = append(batch, t)
			if limit > 0 && len(batch) >= limit {
				break
			}
		}
		return batch, nil

	default:
		return all[:1], nil
	}
}

// Update persists t, transitioning its status and maintains the by_status
// index; start/finish timestamps and error are set by the caller on t
// before calling Update.
func (q *Queue) Update(t *types.Task) error {
	return q.env.Update(func(tx *bolt.Tx) error {
		old := tx.Bucket(bucketTasks).Get(be8(t.UID))
		if old != nil {
			var prev types.Task
			if err := json.Unmarshal(old, &prev); err == nil && prev.Status != t.Status {
				if err := tx.Bucket(bucketByStatus).Delete(composite(string(prev.Status), t.UID)); err != nil {
					return err
				}
				if err := tx.Bucket(bucketByStatus).Put(composite(string(t.Status), t.UID), nil); err != nil {
					return err
				}
			}
		}
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTasks).Put(be8(t.UID), data)
	})
}

// AllTasks returns every task in the queue across all statuses, used by the
// dump writer.
func (q *Queue) AllTasks() ([]*types.Task, error) {
	var out []*types.Task
	for _, s := range []types.TaskStatus{
		types.TaskStatusEnqueued, types.TaskStatusProcessing,
		types.TaskStatusSucceeded, types.TaskStatusFailed, types.TaskStatusCanceled,
	} {
		inStatus, err := q.ListByStatus(s)
		if err != nil {
			return nil, err
		}
		out = append(out, inStatus...)
	}
	return out, nil
}

// CountsByStatus returns the number of tasks in each status, used by the
// metrics collector.
func (q *Queue) CountsByStatus() (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, s := range []types.TaskStatus{
		types.TaskStatusEnqueued, types.TaskStatusProcessing,
		types.TaskStatusSucceeded, types.TaskStatusFailed, types.TaskStatusCanceled,
	} {
		tasksInStatus, err := q.ListByStatus(s)
		if err != nil {
			return nil, err
		}
		counts[string(s)] = int64(len(tasksInStatus))
	}
	return counts, nil
}

// Delete permanently removes a terminal task from the queue, the only way a
// task record is ever reclaimed. It is an error to delete a task that is
// still enqueued or processing.
func (q *Queue) Delete(uid uint64) error {
	return q.env.Update(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTasks).Get(be8(uid))
		if data == nil {
			return fmt.Errorf("tasks: uid %d: %w", uid, ErrNotFound)
		}
		var t types.Task
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		if !t.Status.Terminal() {
			return fmt.Errorf("tasks: uid %d is %s, not deletable", uid, t.Status)
		}
		if err := tx.Bucket(bucketTasks).Delete(be8(uid)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketByIndex).Delete(composite(t.IndexUID, uid)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketByStatus).Delete(composite(string(t.Status), uid)); err != nil {
			return err
		}
		return tx.Bucket(bucketByKind).Delete(composite(string(t.Kind), uid))
	})
}

// Cancel marks an enqueued or processing task canceled, recording
// canceledBy (the uid of the taskCancelation task that requested it).
func (q *Queue) Cancel(uid uint64, canceledBy uint64) error {
	t, err := q.Get(uid)
	if err != nil {
		return err
	}
	if t.Status != types.TaskStatusEnqueued && t.Status != types.TaskStatusProcessing {
		return fmt.Errorf("tasks: uid %d is %s, not cancelable", uid, t.Status)
	}
	t.Status = types.TaskStatusCanceled
	t.CanceledBy = &canceledBy
	now := time.Now()
	t.FinishedAt = &now
	return q.Update(t)
}
