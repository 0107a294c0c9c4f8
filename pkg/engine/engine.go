// Package engine wires together the task queue, scheduler, per-index
// storage, snapshot/dump subsystem, and admission control into the single
// orchestrator the CLI and (a future) HTTP transport sit on top of.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/strata/pkg/admission"
	"github.com/cuemby/strata/pkg/events"
	"github.com/cuemby/strata/pkg/index"
	"github.com/cuemby/strata/pkg/log"
	"github.com/cuemby/strata/pkg/metrics"
	"github.com/cuemby/strata/pkg/query"
	"github.com/cuemby/strata/pkg/scheduler"
	"github.com/cuemby/strata/pkg/snapshot"
	"github.com/cuemby/strata/pkg/tasks"
	"github.com/cuemby/strata/pkg/types"
	"github.com/rs/zerolog"
)

// Engine is the top-level orchestrator: one task queue, one scheduler, and
// one pkg/index.Index per index UID, all rooted under Config.DataDir.
type Engine struct {
	cfg types.Config

	mu      sync.RWMutex
	indexes map[string]*index.Index

	queue       *tasks.Queue
	broker      *events.Broker
	scheduler   *scheduler.Scheduler
	collector   *metrics.Collector
	admission   *admission.Controller
	snapshotMgr *snapshot.Manager
	dumpMgr     *snapshot.DumpManager
	logger      zerolog.Logger
}

// indexesDir returns the directory under which each index gets its own
// subdirectory, mirroring the teacher's one-subdirectory-per-resource
// on-disk layout.
func indexesDir(cfg types.Config) string {
	return filepath.Join(cfg.DataDir, "indexes")
}

// New opens (or creates) the engine's on-disk state: the task queue, every
// previously created index, and the snapshot/dump subsystems, and starts
// the scheduler and event broker.
func New(cfg types.Config) (*Engine, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create data dir: %w", err)
	}

	queue, err := tasks.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("engine: open task queue: %w", err)
	}

	e := &Engine{
		cfg:         cfg,
		indexes:     make(map[string]*index.Index),
		queue:       queue,
		broker:      events.NewBroker(),
		admission:   admission.New(cfg.MaxConcurrentSearches),
		snapshotMgr: snapshot.NewManager(cfg.SnapshotDir),
		dumpMgr:     snapshot.NewDumpManager(cfg.DumpDir),
		logger:      log.WithComponent("engine"),
	}

	if err := e.loadExistingIndexes(); err != nil {
		queue.Close()
		return nil, err
	}

	if err := e.snapshotMgr.RecoverTmp(); err != nil {
		e.logger.Error().Err(err).Msg("snapshot tmp recovery failed")
	}

	metrics.RegisterComponent("kv", true, "task queue open")
	metrics.RegisterComponent("scheduler", true, "starting")

	e.scheduler = scheduler.New(queue, e, e.broker, cfg.IndexingThreads*25)
	e.collector = metrics.NewCollector(e)

	e.broker.Start()
	e.scheduler.Start()
	e.collector.Start()

	metrics.UpdateComponent("scheduler", true, "running")

	return e, nil
}

func (e *Engine) loadExistingIndexes() error {
	entries, err := os.ReadDir(indexesDir(e.cfg))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("engine: list index directories: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		idx, err := index.Open(indexesDir(e.cfg), entry.Name())
		if err != nil {
			return fmt.Errorf("engine: reopen index %s: %w", entry.Name(), err)
		}
		e.indexes[entry.Name()] = idx
	}
	return nil
}

// Close stops the scheduler and broker and releases every open database
// handle.
func (e *Engine) Close() error {
	e.scheduler.Stop()
	e.collector.Stop()
	e.broker.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for uid, idx := range e.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("engine: close index %s: %w", uid, err)
		}
	}
	if err := e.queue.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("engine: close task queue: %w", err)
	}
	return firstErr
}

func (e *Engine) indexByUID(uid string) (*index.Index, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, ok := e.indexes[uid]
	return idx, ok
}

// Search runs a query against indexUID, subject to admission control.
func (e *Engine) Search(ctx context.Context, indexUID string, req query.Request) (*query.Result, error) {
	idx, ok := e.indexByUID(indexUID)
	if !ok {
		return nil, &types.Error{Kind: types.ErrorKindIndexNotFound, Message: "index not found: " + indexUID}
	}

	if err := e.admission.Acquire(ctx); err != nil {
		metrics.SearchRejectedTotal.Inc()
		return nil, err
	}
	defer e.admission.Release()

	timer := metrics.NewTimer()
	result, err := query.New(idx).Search(req)
	timer.ObserveDurationVec(metrics.SearchDuration, indexUID)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SearchRequestsTotal.WithLabelValues(indexUID, status).Inc()
	return result, err
}

// GetTask fetches a task by uid.
func (e *Engine) GetTask(uid uint64) (*types.Task, error) {
	return e.queue.Get(uid)
}

// ListTasksByIndex lists every task enqueued against indexUID.
func (e *Engine) ListTasksByIndex(indexUID string) ([]*types.Task, error) {
	return e.queue.ListByIndex(indexUID)
}

// inferPrimaryKey picks the primary key candidate from a document the way
// a first-insert index does: the first field, alphabetically, whose name
// ends in "id" (case-insensitive).
func inferPrimaryKey(doc types.Document) (string, bool) {
	var candidates []string
	for k := range doc {
		if strings.HasSuffix(strings.ToLower(k), "id") {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Strings(candidates)
	return candidates[0], true
}

func externalIDOf(doc types.Document, primaryKey string) (string, error) {
	v, ok := doc[primaryKey]
	if !ok {
		return "", fmt.Errorf("engine: document missing primary key field %q", primaryKey)
	}
	return fmt.Sprint(v), nil
}
