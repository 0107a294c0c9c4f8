/*
Package metrics provides Prometheus metrics collection and exposition for
the engine.

All metrics are package-level variables registered against the default
Prometheus registry at init time and updated from pkg/engine, pkg/scheduler,
and pkg/snapshot as tasks and searches flow through the system. A Collector
periodically samples engine-wide stats (index count, document count, index
size, task counts by status) via the StatsSource interface rather than
having pkg/engine push gauge updates directly.

# Metrics Catalog

Index metrics:

	strata_indexes_total            gauge
	strata_documents_total{index_uid}      gauge
	strata_index_size_bytes{index_uid}     gauge

Task queue metrics:

	strata_tasks_total{status}             gauge
	strata_tasks_enqueued_total{kind}      counter
	strata_tasks_failed_total{kind}        counter

Batch / scheduler metrics:

	strata_batch_latency_seconds           histogram
	strata_batches_processed_total         counter
	strata_batch_size_tasks                histogram

Indexing pipeline metrics:

	strata_indexing_duration_seconds{stage} histogram
	strata_documents_indexed_total{index_uid} counter

Search metrics:

	strata_search_requests_total{index_uid,status} counter
	strata_search_duration_seconds{index_uid}      histogram
	strata_search_rejected_total                   counter

Snapshot / dump metrics:

	strata_snapshot_duration_seconds       histogram
	strata_dump_duration_seconds           histogram

# Usage

	timer := metrics.NewTimer()
	result, err := executor.Search(req)
	timer.ObserveDurationVec(metrics.SearchDuration, indexUID)

# Exposition

Handler() returns the standard promhttp.Handler, served by cmd/strata's
serve command when --metrics-addr is set.
*/
package metrics
