// Package models defines domain entities and persistence interfaces for the watchx media tracker.
//
// The package contains two categories of types:
//
// 1. Catalog values: normalized metadata shared by every provider
//   - [Content] : sealed union over [Movie], [Show] and [Anime], dispatched with [Visit] or [Match]
//   - [Page] : one page of catalog results
//   - [ContentByStatus] : the dashboard aggregate grouped by type and [WatchStatus]
//
// 2. Persistent Entities: database-backed models owned by the reference backend
//   - [User] : account that owns watch-status records
//   - [WatchStatusRecord] : one tracked (user, content type, content id) relationship
//
// All persistent entities implement the Model interface providing IDs, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
