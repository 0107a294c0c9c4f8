/*
Package scheduler drains the durable task queue in batches and dispatches
each task to a Runner, the collaborator that knows how to actually create
an index, apply a document change, update settings, or create a snapshot
or dump.

The scheduler loop ticks once a second, pulling up to batchSize enqueued
tasks, marking each Processing, dispatching it, and recording its
Succeeded/Failed/Canceled outcome - one task's failure never aborts the
rest of its batch. Batch-level metrics and lifecycle events are emitted
around the whole cycle; per-task events are emitted around each dispatch.
*/
package scheduler
