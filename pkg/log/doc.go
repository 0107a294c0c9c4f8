/*
Package log provides structured logging for strata using zerolog.

It wraps zerolog to give every component (scheduler, indexing, kv, snapshot)
a child logger carrying its own "component" field, plus helpers for the
identifiers that show up across log lines: index_uid, task_uid, batch_uid.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	schedulerLog := log.WithComponent("scheduler")
	schedulerLog.Info().Uint64("batch_uid", 12).Msg("batch created")

	taskLog := log.WithTaskUID(task.UID)
	taskLog.Error().Err(err).Msg("task failed")

# Levels

Debug is for development tracing, Info is the default production level,
Warn flags conditions worth a look (stalled batches, retried writes), Error
marks operation failures, Fatal exits the process and is reserved for
unrecoverable startup failures (a corrupt data directory, a KV env that
won't open).
*/
package log
