/*
Package tasks implements the durable task queue on top of pkg/kv: a single
bbolt environment holding the task records plus by_index, by_status, and
by_kind secondary indexes, mirroring the bucket-per-concern layout the
storage layer elsewhere in this codebase uses for its resources.

uid allocation is monotonic and persisted in the meta bucket so task uids
never reuse across restarts. The scheduler is the only other package that
mutates queue state; everything else only enqueues or reads.
*/
package tasks
