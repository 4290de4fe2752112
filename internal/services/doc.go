// Package services contains the HTTP clients watchx talks to: read-only metadata
// providers behind the [Catalog] interface and the watch-status backend.
//
// # Catalogs
//
// Each [Catalog] serves exactly one [models.ContentType]:
//   - [TMDBService] for movies, and for shows unless catalog.shows_provider is "tvmaze"
//   - [TVMazeService] for shows, without credentials
//   - [MALService] for anime, authenticated with the X-MAL-CLIENT-ID header
//
// Provider payloads are mapped onto [models.Movie], [models.Show] and [models.Anime].
// TMDB season 0 (specials) is dropped so progress pickers start at season 1.
//
// # Watch-status Backend
//
// [WatchStatusService] implements the backend REST contract. The bearer token is attached
// by an [oauth2.Transport] over a static token source. [WatchStatusService.EventsURL]
// returns the websocket address of the user's change stream.
//
// # Transport
//
// All clients share one request path:
//   - a [rate.Limiter] per client when a rate limit is configured
//   - a per-request timeout, 12s by default
//   - exponential backoff on GETs for transport failures and 5xx responses (catalogs only)
//
// # Error Handling
//
// Failures are reported with the shared taxonomy:
//   - [shared.TransportError] : no response (DNS, refused, timeout); matches [shared.ErrTransport]
//   - [shared.UpstreamError] : non-2xx response; matches [shared.ErrUpstream]
//   - 401 responses additionally match [shared.ErrAuthRequired]
package services
