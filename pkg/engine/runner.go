package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cuemby/strata/pkg/events"
	"github.com/cuemby/strata/pkg/index"
	"github.com/cuemby/strata/pkg/indexing"
	"github.com/cuemby/strata/pkg/metrics"
	"github.com/cuemby/strata/pkg/types"
)

// CreateIndex implements scheduler.Runner for TaskKindIndexCreation.
func (e *Engine) CreateIndex(ctx context.Context, t *types.Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.indexes[t.IndexUID]; exists {
		return &types.Error{Kind: types.ErrorKindUserError, Message: "index already exists: " + t.IndexUID}
	}
	if len(e.indexes) >= e.cfg.MaxIndexes {
		return &types.Error{Kind: types.ErrorKindUserError, Message: "max_indexes limit reached"}
	}

	idx, err := index.Open(indexesDir(e.cfg), t.IndexUID)
	if err != nil {
		return &types.Error{Kind: types.ErrorKindStorage, Message: "create index", Cause: err}
	}

	var payload createIndexPayload
	if len(t.Payload) > 0 {
		if err := json.Unmarshal(t.Payload, &payload); err != nil {
			return &types.Error{Kind: types.ErrorKindUserError, Message: "invalid create-index payload", Cause: err}
		}
	}
	if payload.PrimaryKey != "" {
		if err := idx.SetPrimaryKey(payload.PrimaryKey); err != nil {
			return &types.Error{Kind: types.ErrorKindStorage, Message: "set primary key", Cause: err}
		}
	}

	e.indexes[t.IndexUID] = idx
	e.broker.Publish(&events.Event{Type: events.EventIndexCreated, Message: "index created: " + t.IndexUID})
	return nil
}

// DeleteIndex implements scheduler.Runner for TaskKindIndexDeletion.
func (e *Engine) DeleteIndex(ctx context.Context, t *types.Task) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx, ok := e.indexes[t.IndexUID]
	if !ok {
		return &types.Error{Kind: types.ErrorKindIndexNotFound, Message: "index not found: " + t.IndexUID}
	}
	if err := idx.Close(); err != nil {
		return &types.Error{Kind: types.ErrorKindStorage, Message: "close index", Cause: err}
	}
	delete(e.indexes, t.IndexUID)

	dir := indexDir(e.cfg, t.IndexUID)
	if err := os.RemoveAll(dir); err != nil {
		return &types.Error{Kind: types.ErrorKindStorage, Message: "remove index directory", Cause: err}
	}

	e.broker.Publish(&events.Event{Type: events.EventIndexDeleted, Message: "index deleted: " + t.IndexUID})
	return nil
}

func indexDir(cfg types.Config, uid string) string {
	return filepath.Join(indexesDir(cfg), uid)
}

// UpdateIndex implements scheduler.Runner for TaskKindIndexUpdate: currently
// limited to assigning the primary key.
func (e *Engine) UpdateIndex(ctx context.Context, t *types.Task) error {
	idx, ok := e.indexByUID(t.IndexUID)
	if !ok {
		return &types.Error{Kind: types.ErrorKindIndexNotFound, Message: "index not found: " + t.IndexUID}
	}
	var payload updateIndexPayload
	if err := json.Unmarshal(t.Payload, &payload); err != nil {
		return &types.Error{Kind: types.ErrorKindUserError, Message: "invalid update-index payload", Cause: err}
	}
	if err := idx.SetPrimaryKey(payload.PrimaryKey); err != nil {
		return &types.Error{Kind: types.ErrorKindStorage, Message: "set primary key", Cause: err}
	}
	return nil
}

// SwapIndexes implements scheduler.Runner for TaskKindIndexSwap: the two
// named UIDs exchange the *index.Index each currently answers for, an
// atomic rename at the map level rather than on disk.
func (e *Engine) SwapIndexes(ctx context.Context, t *types.Task) error {
	var payload swapIndexesPayload
	if err := json.Unmarshal(t.Payload, &payload); err != nil {
		return &types.Error{Kind: types.ErrorKindUserError, Message: "invalid swap payload", Cause: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	left, ok := e.indexes[payload.Left]
	if !ok {
		return &types.Error{Kind: types.ErrorKindIndexNotFound, Message: "index not found: " + payload.Left}
	}
	right, ok := e.indexes[payload.Right]
	if !ok {
		return &types.Error{Kind: types.ErrorKindIndexNotFound, Message: "index not found: " + payload.Right}
	}
	e.indexes[payload.Left], e.indexes[payload.Right] = right, left
	return nil
}

// buildAddOrUpdateChanges turns a TaskKindDocumentAdditionOrUpdate task's
// payload into the document changes its replaceDocuments/updateDocuments
// method implies, inferring and persisting the index's primary key from the
// first document if one isn't already set.
func buildAddOrUpdateChanges(idx *index.Index, t *types.Task) ([]indexing.DocumentChange, error) {
	var payload addOrUpdateDocumentsPayload
	if err := json.Unmarshal(t.Payload, &payload); err != nil {
		return nil, &types.Error{Kind: types.ErrorKindUserError, Message: "invalid documents payload", Cause: err}
	}

	primaryKey, err := idx.PrimaryKey()
	if err != nil {
		return nil, &types.Error{Kind: types.ErrorKindStorage, Message: "read primary key", Cause: err}
	}

	changes := make([]indexing.DocumentChange, 0, len(payload.Documents))
	for _, doc := range payload.Documents {
		if primaryKey == "" {
			pk, ok := inferPrimaryKey(doc)
			if !ok {
				return nil, &types.Error{Kind: types.ErrorKindUserError, Message: "no primary key field found in document"}
			}
			primaryKey = pk
			if err := idx.SetPrimaryKey(primaryKey); err != nil {
				return nil, &types.Error{Kind: types.ErrorKindStorage, Message: "set primary key", Cause: err}
			}
		}
		externalID, err := externalIDOf(doc, primaryKey)
		if err != nil {
			return nil, &types.Error{Kind: types.ErrorKindUserError, Message: err.Error()}
		}

		final := doc
		if payload.Method == documentMethodUpdate {
			merged, err := mergeWithExisting(idx, externalID, doc)
			if err != nil {
				return nil, &types.Error{Kind: types.ErrorKindStorage, Message: "read existing document", Cause: err}
			}
			final = merged
		}

		changes = append(changes, indexing.DocumentChange{
			Kind: indexing.ChangeInsertOrUpdate, ExternalID: externalID, Document: final,
		})
	}

	return changes, nil
}

// mergeWithExisting implements updateDocuments semantics: incoming's fields
// are overlaid onto whatever document is already stored under externalID, so
// fields the caller omitted survive untouched. A document new to the index
// is returned as-is.
func mergeWithExisting(idx *index.Index, externalID string, incoming types.Document) (types.Document, error) {
	docID, found, err := idx.ExternalDocID(externalID)
	if err != nil {
		return nil, err
	}
	if !found {
		return incoming, nil
	}
	existing, found, err := idx.GetDocument(docID)
	if err != nil {
		return nil, err
	}
	if !found {
		return incoming, nil
	}
	merged := make(types.Document, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged, nil
}

// buildDeleteChanges turns a TaskKindDocumentDeletion task's payload into
// document changes.
func buildDeleteChanges(t *types.Task) ([]indexing.DocumentChange, error) {
	var payload deleteDocumentsPayload
	if err := json.Unmarshal(t.Payload, &payload); err != nil {
		return nil, &types.Error{Kind: types.ErrorKindUserError, Message: "invalid delete payload", Cause: err}
	}
	changes := make([]indexing.DocumentChange, 0, len(payload.ExternalIDs))
	for _, id := range payload.ExternalIDs {
		changes = append(changes, indexing.DocumentChange{Kind: indexing.ChangeDeletion, ExternalID: id})
	}
	return changes, nil
}

// buildEditChanges turns a TaskKindDocumentEdition task's payload into
// document changes using FieldSetEditor, the narrowest real stand-in for a
// scripting engine.
func buildEditChanges(idx *index.Index, t *types.Task) ([]indexing.DocumentChange, error) {
	var payload editDocumentsPayload
	if err := json.Unmarshal(t.Payload, &payload); err != nil {
		return nil, &types.Error{Kind: types.ErrorKindUserError, Message: "invalid edit payload", Cause: err}
	}
	editor := indexing.FieldSetEditor{Field: payload.Field, Value: payload.Value}

	changes := make([]indexing.DocumentChange, 0, len(payload.ExternalIDs))
	for _, externalID := range payload.ExternalIDs {
		docID, found, err := idx.ExternalDocID(externalID)
		if err != nil {
			return nil, &types.Error{Kind: types.ErrorKindStorage, Message: "look up document", Cause: err}
		}
		if !found {
			continue
		}
		doc, found, err := idx.GetDocument(docID)
		if err != nil {
			return nil, &types.Error{Kind: types.ErrorKindStorage, Message: "read document", Cause: err}
		}
		if !found {
			continue
		}
		edited, ok, err := editor.Edit(doc)
		if err != nil {
			return nil, &types.Error{Kind: types.ErrorKindInternal, Message: "edit document", Cause: err}
		}
		if !ok {
			changes = append(changes, indexing.DocumentChange{Kind: indexing.ChangeDeletion, ExternalID: externalID})
			continue
		}
		changes = append(changes, indexing.DocumentChange{
			Kind: indexing.ChangeInsertOrUpdate, ExternalID: externalID, Document: edited,
		})
	}
	return changes, nil
}

// ApplyDocumentBatch implements scheduler.Runner: it builds the document
// changes every task in batch contributes and applies them as one
// transactional pipeline write, so a batch of add/update/delete/edit tasks
// against the same index pays for exactly one extract-merge-write pass
// instead of one per task. A task whose own payload is malformed is recorded
// as its own failure and excluded from the write; once the changes that did
// build cleanly are assembled, the write either applies for all of the
// remaining tasks or fails for all of them together, matching the
// transactional grouping the batching policy promises.
func (e *Engine) ApplyDocumentBatch(ctx context.Context, batch []*types.Task) (map[uint64]error, error) {
	results := make(map[uint64]error, len(batch))
	if len(batch) == 0 {
		return results, nil
	}

	indexUID := batch[0].IndexUID
	idx, ok := e.indexByUID(indexUID)
	if !ok {
		notFound := &types.Error{Kind: types.ErrorKindIndexNotFound, Message: "index not found: " + indexUID}
		for _, t := range batch {
			results[t.UID] = notFound
		}
		return results, nil
	}

	var allChanges []indexing.DocumentChange
	var okTasks []uint64
	for _, t := range batch {
		var changes []indexing.DocumentChange
		var err error
		switch t.Kind {
		case types.TaskKindDocumentAdditionOrUpdate:
			changes, err = buildAddOrUpdateChanges(idx, t)
		case types.TaskKindDocumentDeletion:
			changes, err = buildDeleteChanges(t)
		case types.TaskKindDocumentEdition:
			changes, err = buildEditChanges(idx, t)
		default:
			err = &types.Error{Kind: types.ErrorKindInternal, Message: "unexpected task kind in document batch: " + string(t.Kind)}
		}
		if err != nil {
			results[t.UID] = err
			continue
		}
		allChanges = append(allChanges, changes...)
		okTasks = append(okTasks, t.UID)
	}

	if len(allChanges) == 0 {
		return results, nil
	}

	timer := metrics.NewTimer()
	p := indexing.New(idx, indexing.Config{Workers: e.cfg.IndexingThreads})
	indexed, _, err := p.Apply(ctx, allChanges)
	timer.ObserveDurationVec(metrics.IndexingDuration, "apply")
	if err != nil {
		writeErr := &types.Error{Kind: types.ErrorKindStorage, Message: "apply document changes", Cause: err}
		for _, uid := range okTasks {
			results[uid] = writeErr
		}
		return results, nil
	}

	metrics.DocumentsIndexedTotal.WithLabelValues(indexUID).Add(float64(indexed))
	for _, uid := range okTasks {
		results[uid] = nil
	}
	return results, nil
}

// UpdateSettings implements scheduler.Runner for TaskKindSettingsUpdate.
func (e *Engine) UpdateSettings(ctx context.Context, t *types.Task) error {
	idx, ok := e.indexByUID(t.IndexUID)
	if !ok {
		return &types.Error{Kind: types.ErrorKindIndexNotFound, Message: "index not found: " + t.IndexUID}
	}
	var payload updateSettingsPayload
	if err := json.Unmarshal(t.Payload, &payload); err != nil {
		return &types.Error{Kind: types.ErrorKindUserError, Message: "invalid settings payload", Cause: err}
	}
	if err := idx.PutSettings(payload.Settings); err != nil {
		return &types.Error{Kind: types.ErrorKindStorage, Message: "write settings", Cause: err}
	}
	return nil
}

// CreateSnapshot implements scheduler.Runner for TaskKindSnapshotCreation.
func (e *Engine) CreateSnapshot(ctx context.Context, t *types.Task) error {
	e.mu.RLock()
	indexesCopy := make(map[string]*index.Index, len(e.indexes))
	for uid, idx := range e.indexes {
		indexesCopy[uid] = idx
	}
	e.mu.RUnlock()

	path, err := e.snapshotMgr.Create(indexesCopy, e.queue)
	if err != nil {
		return &types.Error{Kind: types.ErrorKindStorage, Message: "create snapshot", Cause: err}
	}
	e.broker.Publish(&events.Event{Type: events.EventSnapshotCreated, Message: "snapshot created: " + path})
	return nil
}

// CreateDump implements scheduler.Runner for TaskKindDumpCreation.
func (e *Engine) CreateDump(ctx context.Context, t *types.Task) error {
	e.mu.RLock()
	indexesCopy := make(map[string]*index.Index, len(e.indexes))
	for uid, idx := range e.indexes {
		indexesCopy[uid] = idx
	}
	e.mu.RUnlock()

	path, err := e.dumpMgr.Create(indexesCopy, e.queue)
	if err != nil {
		return &types.Error{Kind: types.ErrorKindStorage, Message: "create dump", Cause: err}
	}
	e.broker.Publish(&events.Event{Type: events.EventDumpCreated, Message: "dump created: " + path})
	return nil
}
