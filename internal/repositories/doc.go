// Package repositories implements SQLite persistence for the reference watch-status backend.
//
// Key Implementations:
//   - [UserRepository] : User persistence with soft deletes and sequence numbers
//   - [WatchStatusRepository] : One row per tracked (user, content type, content id) with upsert and batch lookups
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
