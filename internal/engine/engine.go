// Package engine implements the persistent key/value storage engine: a
// log-structured default engine (KvsEngine) backed by an append-only
// command log, plus an alternate embedded-database adapter (SQLiteEngine).
// Both satisfy the same Engine interface so the server can select one by
// name at startup.
package engine

import "context"

// Engine is the storage contract shared by every backend. An Engine value
// is a lightweight handle: implementations keep their mutable state behind
// shared ownership (locks, channels) so that any number of clones may be
// handed to worker-pool goroutines concurrently. Engine is never mutated
// through a pointer receiver for this reason — cloning an Engine value
// must share state, not copy it.
type Engine interface {
	// Set inserts or overwrites key's value.
	Set(ctx context.Context, key, value string) error
	// Get returns the value for key, or ok=false if key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Remove deletes key. It returns a kvserr.KeyNotFound error if key is
	// absent.
	Remove(ctx context.Context, key string) error
	// Name identifies the engine variant, used for the engine-lock
	// compatibility check at startup ("kvs" or "sqlite").
	Name() string
	// Close releases engine resources, flushing any buffered writes.
	Close() error
}

// Supported engine variant names, used for the --engine flag and the
// engine-lock compatibility file.
const (
	NameKvs    = "kvs"
	NameSQLite = "sqlite"
)
