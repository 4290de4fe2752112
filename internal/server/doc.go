// Package server is the reference watch-status backend.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter]
// registers "METHOD /path" patterns on an [http.ServeMux], so path wildcards such as
// {userId} are read with [http.Request.PathValue].
//
// [Middleware] wraps handlers in reverse order (last added executes first). Route
// middleware passed to Handle runs inside the router middleware.
//
// # Authentication
//
// Clients send an HS256 bearer token issued by [SignToken]. [AuthMiddleware] stores the
// [Claims] on the request context and [OwnerMiddleware] rejects access to another user's
// records with 403.
//
// # Endpoints
//
//	GET /health
//	GET /api/auth
//	GET /users/{userId}/watch-status/all
//	GET /users/{userId}/watch-status/batch?contentType=&contentIds=
//	GET /users/{userId}/watch-status/events
//	GET /users/{userId}/watch-status/{contentType}?status=
//	GET /users/{userId}/watch-status/{contentType}/{contentId}
//	PUT /users/{userId}/watch-status/{contentType}/{contentId}
//
// Writes are published to the user's websocket streams through the [Hub] so other
// clients can invalidate their cached entries.
package server
