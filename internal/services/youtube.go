// YouTube Data API v3 [Catalog] implementation.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"shaztube/internal/models"
	"shaztube/internal/shared"
)

const (
	// defaultRateLimit keeps batch builds inside the Data API quota.
	defaultRateLimit = 5.0

	pageSize = 50
)

// YouTubeCatalog implements the Catalog interface on top of the official
// YouTube Data API v3 client.
type YouTubeCatalog struct {
	service *youtube.Service
	limiter *rate.Limiter
}

// NewYouTubeCatalog creates a catalog client authorized with the given
// OAuth2 access token. Extra client options are appended after the token
// source, so tests can redirect the client at a fake endpoint.
func NewYouTubeCatalog(ctx context.Context, accessToken string, opts ...option.ClientOption) (*YouTubeCatalog, error) {
	var clientOpts []option.ClientOption
	if accessToken != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
		clientOpts = append(clientOpts, option.WithTokenSource(src))
	}
	clientOpts = append(clientOpts, opts...)

	service, err := youtube.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}

	return &YouTubeCatalog{
		service: service,
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), 1),
	}, nil
}

// Name returns the provider name.
func (y *YouTubeCatalog) Name() string {
	return "YouTube"
}

// ListPlaylists retrieves all playlists owned by the authenticated user,
// following page tokens until the listing is exhausted.
func (y *YouTubeCatalog) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	pageToken := ""

	for {
		if err := y.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := y.service.Playlists.List([]string{"snippet", "contentDetails"}).
			Mine(true).
			MaxResults(pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, mapAPIError("failed to list playlists", err)
		}

		for _, item := range resp.Items {
			playlist := models.Playlist{
				ID:    item.Id,
				Title: item.Snippet.Title,
			}
			if item.ContentDetails != nil {
				playlist.ItemCount = int(item.ContentDetails.ItemCount)
			}
			playlists = append(playlists, playlist)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return playlists, nil
}

// CreatePlaylist creates an empty playlist and returns its ID.
func (y *YouTubeCatalog) CreatePlaylist(ctx context.Context, title, privacy string) (string, error) {
	if privacy == "" {
		privacy = "private"
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return "", err
	}

	playlist := &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{
			Title: title,
		},
		Status: &youtube.PlaylistStatus{
			PrivacyStatus: privacy,
		},
	}

	resp, err := y.service.Playlists.Insert([]string{"snippet", "status"}, playlist).Context(ctx).Do()
	if err != nil {
		return "", mapAPIError(fmt.Sprintf("failed to create playlist %q", title), err)
	}

	return resp.Id, nil
}

// SearchBestMatch resolves a track query to the top-ranked video ID.
func (y *YouTubeCatalog) SearchBestMatch(ctx context.Context, query string) (string, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := y.service.Search.List([]string{"id"}).
		Q(query).
		Type("video").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", mapAPIError(fmt.Sprintf("search failed for %q", query), err)
	}

	if len(resp.Items) == 0 || resp.Items[0].Id == nil || resp.Items[0].Id.VideoId == "" {
		return "", fmt.Errorf("%w: %q", shared.ErrTrackNotFound, query)
	}

	return resp.Items[0].Id.VideoId, nil
}

// ListPlaylistItems retrieves every item in a playlist.
func (y *YouTubeCatalog) ListPlaylistItems(ctx context.Context, playlistID string) ([]models.PlaylistItem, error) {
	var items []models.PlaylistItem
	pageToken := ""

	for {
		if err := y.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		call := y.service.PlaylistItems.List([]string{"contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, mapAPIError(fmt.Sprintf("failed to list items for playlist %s", playlistID), err)
		}

		for _, item := range resp.Items {
			entry := models.PlaylistItem{ID: item.Id}
			if item.ContentDetails != nil {
				entry.VideoID = item.ContentDetails.VideoId
			}
			items = append(items, entry)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return items, nil
}

// InsertPlaylistItem appends a video to the end of a playlist.
func (y *YouTubeCatalog) InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return err
	}

	item := &youtube.PlaylistItem{
		Snippet: &youtube.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &youtube.ResourceId{
				Kind:    "youtube#video",
				VideoId: videoID,
			},
		},
	}

	if _, err := y.service.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do(); err != nil {
		return mapAPIError(fmt.Sprintf("failed to add video %s", videoID), err)
	}

	return nil
}

// RemovePlaylistItem deletes a playlist item by its item ID.
func (y *YouTubeCatalog) RemovePlaylistItem(ctx context.Context, itemID string) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return err
	}

	if err := y.service.PlaylistItems.Delete(itemID).Context(ctx).Do(); err != nil {
		return mapAPIError(fmt.Sprintf("failed to remove item %s", itemID), err)
	}

	return nil
}

// mapAPIError converts googleapi errors to typed errors so callers can
// distinguish expired credentials from provider outages.
func mapAPIError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return fmt.Errorf("%s: %w", op, shared.ErrTokenExpired)
		case apiErr.Code >= http.StatusInternalServerError:
			return fmt.Errorf("%s: %w", op, shared.ErrExternalService)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
