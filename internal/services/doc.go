// Package services defines the [Catalog] interface for video catalog
// providers and implements it for the YouTube Data API v3.
//
// # Catalog Interface
//
// A Catalog exposes the handful of operations playlist reconciliation
// needs: listing the authenticated user's playlists, creating one,
// resolving a track query to a video, and mutating playlist items.
//
// # YouTube Implementation
//
// [YouTubeCatalog] wraps the official google.golang.org/api/youtube/v3
// client with a bearer token supplied by the auth package. Every call
// passes through a rate limiter so batch builds stay inside the Data
// API quota, and list operations follow page tokens transparently.
//
// # Error Handling
//
// Provider errors are mapped to typed errors from the shared package:
//   - [shared.ErrTokenExpired] : 401/403 from the API, reauthorization needed
//   - [shared.ErrExternalService] : 5xx from the API
//   - [shared.ErrTrackNotFound] : a search returned zero results
package services
