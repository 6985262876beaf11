// package models defines the data model for the playlist conversion service
package models

import (
	"fmt"
	"strings"
)

// Track is a normalized (title, artist) pair extracted from a Shazam export.
//
// Album is carried for compatibility with other import formats but is never
// populated by the Shazam CSV.
type Track struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`
}

// Validate checks that the track carries a usable title and artist.
func (t Track) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("track title is empty")
	}
	if strings.TrimSpace(t.Artist) == "" {
		return fmt.Errorf("track artist is empty")
	}
	return nil
}

// Query returns the catalog search query for the track.
func (t Track) Query() string {
	return fmt.Sprintf("%s %s", t.Title, t.Artist)
}

// String renders the track for display and logs.
func (t Track) String() string {
	return fmt.Sprintf("%s - %s", t.Artist, t.Title)
}

// Playlist represents a playlist owned by the authorized catalog account.
type Playlist struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	ItemCount int    `json:"itemCount"`
}

// PlaylistItem represents one entry of a playlist.
//
// ID is the playlist-item identifier (needed for removal); VideoID is the
// catalog video the entry points at.
type PlaylistItem struct {
	ID      string `json:"id"`
	VideoID string `json:"videoId"`
}
