package kv

import (
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// Env wraps a single bbolt database file: one transactional, MVCC-backed
// environment holding every sub-database (bucket) used by its owner, the
// same one-database-per-data-dir shape used elsewhere in this codebase for
// BoltStore, generalized to an arbitrary, caller-supplied bucket set so it
// can back either the task queue or a single index.
type Env struct {
	db   *bolt.DB
	path string
}

// Open opens (creating if absent) the bbolt file at path and ensures every
// named bucket exists.
func Open(path string, buckets ...[]byte) (*Env, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("kv: create data dir: %w", err)
	}

	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("kv: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("kv: create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Env{db: db, path: path}, nil
}

// Path returns the filesystem path of the underlying database file.
func (e *Env) Path() string { return e.path }

// View runs fn inside a read-only transaction. Multiple readers run
// concurrently with each other and with a single in-flight writer.
func (e *Env) View(fn func(tx *bolt.Tx) error) error {
	return e.db.View(fn)
}

// Update runs fn inside a read-write transaction. bbolt serializes writers,
// matching the spec's single-writer-many-readers substrate requirement.
func (e *Env) Update(fn func(tx *bolt.Tx) error) error {
	return e.db.Update(fn)
}

// Size returns the on-disk size of the database file in bytes.
func (e *Env) Size() (int64, error) {
	fi, err := os.Stat(e.path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// CopyToPath performs a consistent, point-in-time copy of the whole
// environment to dstPath, the mechanism the snapshot subsystem uses to take
// a byte-level snapshot of each index and of the task queue without
// blocking concurrent readers.
func (e *Env) CopyToPath(dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return fmt.Errorf("kv: create snapshot dir: %w", err)
	}
	return e.db.View(func(tx *bolt.Tx) error {
		f, err := os.OpenFile(dstPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			return fmt.Errorf("kv: open snapshot destination: %w", err)
		}
		defer f.Close()
		if err := tx.Copy(f); err != nil {
			return fmt.Errorf("kv: copy database: %w", err)
		}
		return nil
	})
}

// Close releases the underlying file handle.
func (e *Env) Close() error {
	return e.db.Close()
}
