/*
Package snapshot implements the two backup mechanisms named by the
concurrency and storage design: byte-level snapshots (a straight copy of
every bbolt file, for fast same-version restore) and portable dumps (a
JSONL/JSON tar.gz archive, for cross-version migration and inspection).

Create is always written to a tmp/ directory first and atomically renamed
into place, so a process crash mid-snapshot never leaves a partial
snapshot where a complete one is expected; RecoverTmp cleans up any such
leftovers on the next startup.
*/
package snapshot
