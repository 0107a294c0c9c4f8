package engine

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/strata/pkg/metrics"
	"github.com/cuemby/strata/pkg/types"
)

func (e *Engine) enqueue(indexUID string, kind types.TaskKind, payload interface{}) (*types.Task, error) {
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("engine: marshal %s payload: %w", kind, err)
		}
	}
	t, err := e.queue.Enqueue(&types.Task{IndexUID: indexUID, Kind: kind, Payload: raw})
	if err != nil {
		return nil, err
	}
	metrics.TasksEnqueuedTotal.WithLabelValues(string(kind)).Inc()
	return t, nil
}

// CreateIndexTask enqueues a task that creates a new empty index.
func (e *Engine) CreateIndexTask(indexUID, primaryKey string) (*types.Task, error) {
	return e.enqueue(indexUID, types.TaskKindIndexCreation, createIndexPayload{PrimaryKey: primaryKey})
}

// DeleteIndexTask enqueues a task that deletes an index and its data.
func (e *Engine) DeleteIndexTask(indexUID string) (*types.Task, error) {
	return e.enqueue(indexUID, types.TaskKindIndexDeletion, nil)
}

// UpdateIndexTask enqueues a task that reassigns an index's primary key.
func (e *Engine) UpdateIndexTask(indexUID, primaryKey string) (*types.Task, error) {
	return e.enqueue(indexUID, types.TaskKindIndexUpdate, updateIndexPayload{PrimaryKey: primaryKey})
}

// SwapIndexesTask enqueues a task that swaps two indexes' contents.
func (e *Engine) SwapIndexesTask(left, right string) (*types.Task, error) {
	return e.enqueue("", types.TaskKindIndexSwap, swapIndexesPayload{Left: left, Right: right})
}

// AddOrUpdateDocumentsTask enqueues a task that inserts documents or
// replaces the full content of any that already exist (replaceDocuments).
func (e *Engine) AddOrUpdateDocumentsTask(indexUID string, docs []types.Document) (*types.Task, error) {
	return e.addOrUpdateDocumentsTask(indexUID, docs, documentMethodReplace)
}

// UpdateDocumentsTask enqueues a task that inserts documents or merges
// incoming fields onto any that already exist (updateDocuments), leaving
// fields the caller omitted untouched.
func (e *Engine) UpdateDocumentsTask(indexUID string, docs []types.Document) (*types.Task, error) {
	return e.addOrUpdateDocumentsTask(indexUID, docs, documentMethodUpdate)
}

func (e *Engine) addOrUpdateDocumentsTask(indexUID string, docs []types.Document, method string) (*types.Task, error) {
	return e.enqueue(indexUID, types.TaskKindDocumentAdditionOrUpdate, addOrUpdateDocumentsPayload{
		Documents: docs, Method: method,
	})
}

// DeleteDocumentsTask enqueues a task that removes documents by external id.
func (e *Engine) DeleteDocumentsTask(indexUID string, externalIDs []string) (*types.Task, error) {
	return e.enqueue(indexUID, types.TaskKindDocumentDeletion, deleteDocumentsPayload{ExternalIDs: externalIDs})
}

// EditDocumentsTask enqueues a task that assigns field=value on the named
// documents, deleting any document the editor rejects.
func (e *Engine) EditDocumentsTask(indexUID string, externalIDs []string, field string, value interface{}) (*types.Task, error) {
	return e.enqueue(indexUID, types.TaskKindDocumentEdition, editDocumentsPayload{
		ExternalIDs: externalIDs, Field: field, Value: value,
	})
}

// UpdateSettingsTask enqueues a task that merges settings into an index.
func (e *Engine) UpdateSettingsTask(indexUID string, settings types.Settings) (*types.Task, error) {
	return e.enqueue(indexUID, types.TaskKindSettingsUpdate, updateSettingsPayload{Settings: settings})
}

// CreateSnapshotTask enqueues a task that snapshots every open index plus
// the task queue itself.
func (e *Engine) CreateSnapshotTask() (*types.Task, error) {
	return e.enqueue("", types.TaskKindSnapshotCreation, nil)
}

// CreateDumpTask enqueues a task that exports a portable dump archive.
func (e *Engine) CreateDumpTask() (*types.Task, error) {
	return e.enqueue("", types.TaskKindDumpCreation, nil)
}

// CancelTask enqueues a task cancelation referencing targetUID.
func (e *Engine) CancelTask(targetUID uint64) (*types.Task, error) {
	t, err := e.queue.Enqueue(&types.Task{
		Kind:    types.TaskKindTaskCancelation,
		Details: map[string]interface{}{"target_uid": targetUID},
	})
	if err != nil {
		return nil, err
	}
	metrics.TasksEnqueuedTotal.WithLabelValues(string(types.TaskKindTaskCancelation)).Inc()
	return t, nil
}

// DeleteTask enqueues a task deletion referencing targetUID; the target
// must already be in a terminal status by the time the scheduler reaches
// this task.
func (e *Engine) DeleteTask(targetUID uint64) (*types.Task, error) {
	t, err := e.queue.Enqueue(&types.Task{
		Kind:    types.TaskKindTaskDeletion,
		Details: map[string]interface{}{"target_uid": targetUID},
	})
	if err != nil {
		return nil, err
	}
	metrics.TasksEnqueuedTotal.WithLabelValues(string(types.TaskKindTaskDeletion)).Inc()
	return t, nil
}
