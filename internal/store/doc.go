// Package store provides the flat key-value store backing the melodex
// catalog.
//
// Records live in a single SQLite table keyed by (collection, key), where
// the collection is a logical prefix such as "tracks" or "albums". The
// store knows nothing about record contents or cross-collection
// references; referential integrity is maintained by the consistency
// sweep, not the storage layer.
//
// The store uses WAL mode for improved concurrent read performance and
// exposes bounded batch deletion so large cleanups commit in small,
// retry-friendly transactions.
package store
