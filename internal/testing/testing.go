// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"shaztube/internal/models"
)

// StubCatalog is a configurable test double for [services.Catalog].
//
// Zero value behaves as an empty channel: no playlists, every search
// resolves to a deterministic video id derived from the query.
type StubCatalog struct {
	Playlists []models.Playlist
	Items     map[string][]models.PlaylistItem

	ListErr   error
	CreateErr error
	SearchErr error
	InsertErr error

	Created  []string
	Inserted map[string][]string
}

func (s *StubCatalog) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	return s.Playlists, nil
}

func (s *StubCatalog) CreatePlaylist(ctx context.Context, title, privacy string) (string, error) {
	if s.CreateErr != nil {
		return "", s.CreateErr
	}
	id := fmt.Sprintf("PL%d", len(s.Created))
	s.Created = append(s.Created, title)
	return id, nil
}

func (s *StubCatalog) SearchBestMatch(ctx context.Context, query string) (string, error) {
	if s.SearchErr != nil {
		return "", s.SearchErr
	}
	return "vid-" + query, nil
}

func (s *StubCatalog) ListPlaylistItems(ctx context.Context, playlistID string) ([]models.PlaylistItem, error) {
	return s.Items[playlistID], nil
}

func (s *StubCatalog) InsertPlaylistItem(ctx context.Context, playlistID, videoID string) error {
	if s.InsertErr != nil {
		return s.InsertErr
	}
	if s.Inserted == nil {
		s.Inserted = map[string][]string{}
	}
	s.Inserted[playlistID] = append(s.Inserted[playlistID], videoID)
	return nil
}

func (s *StubCatalog) RemovePlaylistItem(ctx context.Context, itemID string) error {
	return nil
}

func (s *StubCatalog) Name() string { return "stub" }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
