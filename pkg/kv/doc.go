/*
Package kv wraps go.etcd.io/bbolt as the transactional, single-writer,
many-reader embedded key-value substrate every other storage package is
built on: pkg/tasks uses one Env for the task queue, and pkg/index opens one
Env per index directory.

Env exposes View/Update in place of bbolt's raw transaction API and adds
CopyToPath, a consistent file-level copy used by pkg/snapshot to take a
byte-for-byte snapshot of a running environment without blocking readers.
*/
package kv
