// Package scratch provides the per-comparison working state used to join two
// relations: a key to row index and a key tally. Stores are either held in
// memory or spilled to a temporary SQLite database.
package scratch

import (
	"context"

	"github.com/cockroachdb/datadiff/rowvalue"
)

// Store creates scratch structures. All structures are released by Close.
type Store interface {
	NewRowIndex(ctx context.Context) (RowIndex, error)
	NewTally(ctx context.Context) (Tally, error)
	Close() error
}

// Factory opens a fresh Store for a single comparison.
type Factory func(ctx context.Context) (Store, error)

// RowIndex maps keys to rows, remembering insertion order.
type RowIndex interface {
	// Put stores the row under key. It returns false, storing nothing, if the
	// key is already present.
	Put(ctx context.Context, key string, row rowvalue.Row) (bool, error)
	// Take returns the row stored under key and marks it as taken. Taken or
	// absent keys return ok=false.
	Take(ctx context.Context, key string) (row rowvalue.Row, ok bool, err error)
	// Remaining calls fn for every key not yet taken, in insertion order.
	Remaining(ctx context.Context, fn func(key string, row rowvalue.Row) error) error
}

// Tally counts occurrences of keys and marks keys which have been hit.
type Tally interface {
	// Add increments the count of key, returning the new count.
	Add(ctx context.Context, key string) (int64, error)
	// Mark flags key as hit and reports whether it is present.
	Mark(ctx context.Context, key string) (bool, error)
	// Unmarked calls fn for every key never marked, in insertion order.
	Unmarked(ctx context.Context, fn func(key string, count int64) error) error
}
