// Package tasks orchestrates watchlist jobs with real-time progress reporting.
//
// # Core Operations
//
//  1. [Engine.Dashboard] : Build a user's dashboard from stored records
//     - Lists the user's watch-status records
//     - Resolves each record's content through a [DetailsFetcher] with a rate-limited worker pool
//     - Skips records whose content cannot be fetched
//
//  2. [Engine.Export] : Write a dashboard aggregate to disk
//     - One combined file, optionally one file per content type
//     - An export_manifest.json summarizing the files and counts
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
