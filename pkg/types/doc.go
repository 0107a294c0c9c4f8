/*
Package types defines the engine-wide data model: indexes, documents, tasks,
batches, settings, and the structured error taxonomy, plus the Config struct
loaded at startup.

Types here carry no behavior beyond small accessors (Settable, Error); all
operations over them live in pkg/kv, pkg/index, pkg/tasks, pkg/scheduler,
pkg/indexing, pkg/query, and pkg/snapshot.
*/
package types
