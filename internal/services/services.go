package services

import (
	"context"

	"shaztube/internal/models"
)

// Catalog defines the interface for video catalog providers that can
// host playlists built from recognized tracks.
type Catalog interface {
	// ListPlaylists retrieves all playlists owned by the authenticated user.
	ListPlaylists(ctx context.Context) ([]models.Playlist, error)

	// CreatePlaylist creates an empty playlist with the given title and
	// privacy status and returns its ID.
	CreatePlaylist(ctx context.Context, title, privacy string) (string, error)

	// SearchBestMatch resolves a free-text track query to the ID of the
	// top-ranked video. Returns shared.ErrTrackNotFound when the provider
	// has no match.
	SearchBestMatch(ctx context.Context, query string) (string, error)

	// ListPlaylistItems retrieves every item in a playlist.
	ListPlaylistItems(ctx context.Context, playlistID string) ([]models.PlaylistItem, error)

	// InsertPlaylistItem appends a video to the end of a playlist.
	InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error

	// RemovePlaylistItem deletes a playlist item by its item ID.
	RemovePlaylistItem(ctx context.Context, itemID string) error

	// Name returns the provider name (e.g. "YouTube").
	Name() string
}
