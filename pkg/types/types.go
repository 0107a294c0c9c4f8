package types

import "time"

// Index is the engine-level record for a single index: its identity,
// primary key, creation bookkeeping, and current lifecycle status.
type Index struct {
	UID        string
	PrimaryKey string // empty until inferred or set by the first document batch
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Status     IndexStatus
}

// IndexStatus represents the lifecycle state of an index.
type IndexStatus string

const (
	IndexStatusCreating IndexStatus = "creating"
	IndexStatusAvailable IndexStatus = "available"
	IndexStatusDeleting  IndexStatus = "deleting"
)

// IndexStats supplements the bare document count with the per-field
// distribution and on-disk footprint used by index summary operations.
type IndexStats struct {
	NumberOfDocuments  int64
	IsIndexing         bool
	FieldDistribution  map[string]int64
	DatabaseSizeBytes  int64
	UsedDatabaseBytes  int64
}

// Document is an opaque, schemaless JSON object keyed by an internal
// document id assigned on first insertion.
type Document map[string]interface{}

// FieldID is the interned identifier for a document field name, stable for
// the lifetime of the index that assigned it.
type FieldID uint16

// DocID is the internal document identifier used throughout an index's
// sub-databases. DocIDs are never reused after deletion.
type DocID uint32

// RankingRule names one step of the ranking-rule cascade applied when
// sorting search results (out of scope to fully implement; retained as a
// settings type so SearchableAttributes-style configuration round-trips).
type RankingRule string

const (
	RankingWords      RankingRule = "words"
	RankingTypo       RankingRule = "typo"
	RankingProximity  RankingRule = "proximity"
	RankingAttribute  RankingRule = "attribute"
	RankingExactness  RankingRule = "exactness"
)

// Settings is the per-index configuration document described by the
// settings endpoints: every field is a Settable so a partial update can
// distinguish "leave alone" from "reset to default" from "assign".
type Settings struct {
	SearchableAttributes Settable[[]string]
	FilterableAttributes Settable[[]string]
	SortableAttributes   Settable[[]string]
	DisplayedAttributes  Settable[[]string]
	RankingRules         Settable[[]RankingRule]
	StopWords            Settable[[]string]
	Synonyms             Settable[map[string][]string]
	DistinctAttribute    Settable[string]
	PaginationMaxTotal   Settable[int64]
}

// TaskKind enumerates the operations the task queue accepts.
type TaskKind string

const (
	TaskKindIndexCreation       TaskKind = "indexCreation"
	TaskKindIndexDeletion       TaskKind = "indexDeletion"
	TaskKindIndexUpdate         TaskKind = "indexUpdate"
	TaskKindIndexSwap           TaskKind = "indexSwap"
	TaskKindDocumentAdditionOrUpdate TaskKind = "documentAdditionOrUpdate"
	TaskKindDocumentDeletion    TaskKind = "documentDeletion"
	TaskKindDocumentEdition     TaskKind = "documentEdition"
	TaskKindSettingsUpdate      TaskKind = "settingsUpdate"
	TaskKindSnapshotCreation    TaskKind = "snapshotCreation"
	TaskKindDumpCreation        TaskKind = "dumpCreation"
	TaskKindTaskCancelation     TaskKind = "taskCancelation"
	TaskKindTaskDeletion        TaskKind = "taskDeletion"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusEnqueued   TaskStatus = "enqueued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusSucceeded  TaskStatus = "succeeded"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCanceled   TaskStatus = "canceled"
)

// Terminal reports whether a task in this status will never transition
// again, the precondition taskDeletion requires of its target.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCanceled:
		return true
	default:
		return false
	}
}

// Task is a single queued unit of work against one or more indexes.
type Task struct {
	UID            uint64
	IndexUID       string
	BatchUID       *uint64
	Kind           TaskKind
	Status         TaskStatus
	CanceledBy     *uint64
	Details        map[string]interface{}
	Error          *Error
	Payload        []byte // opaque, kind-specific encoded payload
	EnqueuedAt     time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
}

// Batch groups the tasks the scheduler processed together in one
// transaction, along with aggregate stats over its member tasks.
type Batch struct {
	UID         uint64
	TaskUIDs    []uint64
	Stats       BatchStats
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// BatchStats summarizes a batch's outcome across its member tasks.
type BatchStats struct {
	TotalTasks     int
	SucceededTasks int
	FailedTasks    int
	CanceledTasks  int
	TotalDuration  time.Duration
}

// ErrorKind taxonomizes failures. An error of any kind attaches to the Task
// it failed. In a batch dispatched task by task, the remaining tasks run on
// after a failure of any kind, Storage and Internal included; in a document
// batch, a failed combined write fails every task of the batch.
type ErrorKind string

const (
	ErrorKindUserError     ErrorKind = "user_error"
	ErrorKindIndexNotFound ErrorKind = "index_not_found"
	ErrorKindInvalidFilter ErrorKind = "invalid_filter"
	ErrorKindStorage       ErrorKind = "storage_error"
	ErrorKindInternal      ErrorKind = "internal_error"
)

// Error is the structured error type attached to failed tasks and surfaced
// from query operations.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether this error's kind is a retryable one. Storage and
// Internal errors are never retryable. The scheduler does not consult it and
// retries no batch.
func (e *Error) Retryable() bool {
	return e.Kind != ErrorKindStorage && e.Kind != ErrorKindInternal
}

// Config holds engine-wide configuration loaded from YAML at startup.
type Config struct {
	DataDir               string `yaml:"data_dir"`
	MaxIndexes            int    `yaml:"max_indexes"`
	IndexingThreads       int    `yaml:"indexing_threads"`
	MaxConcurrentSearches int64  `yaml:"max_concurrent_searches"`
	SnapshotDir           string `yaml:"snapshot_dir"`
	DumpDir               string `yaml:"dump_dir"`
	LogLevel              string `yaml:"log_level"`
	LogJSON               bool   `yaml:"log_json"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() Config {
	return Config{
		DataDir:               "./data",
		MaxIndexes:            256,
		IndexingThreads:       4,
		MaxConcurrentSearches: 1000,
		SnapshotDir:           "./data/snapshots",
		DumpDir:               "./data/dumps",
		LogLevel:              "info",
		LogJSON:               true,
	}
}
