// Package store provides durable persistence for the per-owner message log
// using SQLite.
//
// # Architecture
//
// The package exposes a single Store interface implemented twice:
//
//   - SQLiteStore: the production implementation (modernc.org/sqlite)
//   - MockStore: an in-memory implementation with failure injection for tests
//
// The Store is a leaf component: it never retries and never consults
// in-memory session state. Callers own retry policy (per the engine design
// there is none — failures are logged or abort the calling operation).
//
// # Data Model
//
//   - Message: {id, owner, role, content, timestamp}; id is unique for the
//     session's lifetime, timestamps totally order a session's messages.
//
// # Operations
//
//   - LoadOrdered(owner): full log ascending by timestamp; empty is valid
//   - Append(message): idempotent insert keyed by id
//   - ReplaceContent(id, content): in-place content update (edit support)
//   - DeleteAfter(owner, ts): boundary-exclusive truncation (strictly
//     greater than ts)
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//
// Timestamps are stored as fixed-width UTC ISO-8601 text so lexicographic
// comparison on the column matches chronological comparison.
//
// # Errors
//
// Transport/backend failures are wrapped in *StorageError (with Unwrap),
// distinguishable from the empty-result outcome of LoadOrdered. A missing
// message in ReplaceContent additionally wraps ErrNotFound.
package store
