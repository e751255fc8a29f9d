// Package store provides SQLite-backed durable storage for checkpoints of
// a History.
//
// A checkpoint is the canonical JSON document produced by the codec
// package, stored under a name with its content hash. Saving the same
// document under the same name twice is a no-op that returns the existing
// row: UNIQUE(name, content_hash).
//
// # Ordering
//
//   - Every row gets a store-wide seq on insert; wall-clock time is never
//     recorded, so listings are identical across runs
//   - Listings order by seq ASC, id COLLATE BINARY ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
