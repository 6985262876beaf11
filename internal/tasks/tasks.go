// package tasks implements playlist reconciliation against a video catalog.
//
// The core abstraction is [Engine], which takes a batch of recognized
// tracks and materializes them as a playlist: it detects title conflicts
// with existing playlists, applies a conflict policy, searches the
// catalog for each track, and inserts the matches. Operations emit
// progress updates via channels for non-blocking status reporting to
// CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shaztube/internal/models"
	"shaztube/internal/services"
	"shaztube/internal/shared"
)

// Action is a conflict policy for playlists whose title already exists.
type Action int

const (
	// ActionCreate creates a new playlist, conflicts unresolved.
	ActionCreate Action = iota
	// ActionOverwrite empties the existing playlist and refills it.
	ActionOverwrite
	// ActionUpdate appends only tracks not already in the existing playlist.
	ActionUpdate
	// ActionRename creates a new playlist under a different title.
	ActionRename
	// ActionCancel abandons the build.
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionOverwrite:
		return "overwrite"
	case ActionUpdate:
		return "update"
	case ActionRename:
		return "rename"
	case ActionCancel:
		return "cancel"
	default:
		return ""
	}
}

// ParseAction converts a policy name from a CLI flag or request body.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "create":
		return ActionCreate, nil
	case "overwrite":
		return ActionOverwrite, nil
	case "update":
		return ActionUpdate, nil
	case "rename", "new_name":
		return ActionRename, nil
	default:
		return ActionCreate, fmt.Errorf("%w: unknown conflict action %q", shared.ErrInvalidArgument, s)
	}
}

// Request describes a playlist build.
type Request struct {
	Title   string         // Playlist title
	Privacy string         // Privacy status for new playlists
	Tracks  []models.Track // Tracks to place in the playlist
	// OnConflict is applied when a playlist with the same title already
	// exists. ActionCreate means undecided: the resolver is consulted.
	OnConflict Action
	// NewTitle overrides the generated title when OnConflict is ActionRename.
	NewTitle string
}

// Resolution is a conflict decision produced by a ConflictResolver.
type Resolution struct {
	Action   Action
	NewTitle string // Used when Action is ActionRename
}

// ConflictResolver is consulted when a build collides with an existing
// playlist and the request carries no policy. Implementations may block
// (e.g. waiting on a TUI keypress).
type ConflictResolver func(existing models.Playlist) Resolution

// TrackResult records the outcome for a single track in a build.
type TrackResult struct {
	Track   models.Track // Original recognized track
	VideoID string       // Matched catalog video (empty if not found)
	Skipped bool         // Already present in the playlist (update policy)
	Error   error        // Search or insert failure
}

// Result contains all data from a completed (or aborted) build.
type Result struct {
	Success       bool
	PlaylistID    string
	PlaylistTitle string
	Action        Action // Policy that was ultimately applied
	TotalTracks   int
	AddedTracks   int
	FailedTracks  int
	TrackResults  []TrackResult
	Error         error // Fatal cause when Success is false
}

// Engine reconciles track batches into catalog playlists.
type Engine struct {
	catalog services.Catalog
}

// NewEngine creates an Engine backed by the given catalog.
func NewEngine(catalog services.Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// RenameTitle derives the default title for the rename policy.
func RenameTitle(title string) string {
	return fmt.Sprintf("%s %s", title, time.Now().Format("2006-01-02"))
}

// FindConflict checks whether a playlist with the given title already
// exists on the user's channel. Title comparison is case-insensitive.
//
// Listing failures are treated as no conflict: the build proceeds and
// any real problem with the catalog surfaces on the create call.
func (e *Engine) FindConflict(ctx context.Context, title string) (*models.Playlist, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}

	playlists, err := e.catalog.ListPlaylists(ctx)
	if err != nil {
		return nil, nil
	}

	for _, playlist := range playlists {
		if strings.EqualFold(playlist.Title, title) {
			existing := playlist
			return &existing, nil
		}
	}
	return nil, nil
}

// Reconcile builds a playlist from the request's tracks, resolving title
// conflicts through the request policy or the resolver.
//
// Per-track search misses never abort the build; they are recorded as
// failures and the loop continues. Expired credentials and provider
// outages are fatal: the build stops and every track is reported failed.
func (e *Engine) Reconcile(ctx context.Context, req Request, resolve ConflictResolver, progress chan<- ProgressUpdate) (*Result, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if len(req.Tracks) == 0 {
		return nil, fmt.Errorf("%w: %v", shared.ErrPrecondition, shared.ErrNoTracks)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: playlist title is required", shared.ErrPrecondition)
	}

	total := len(req.Tracks)
	result := &Result{
		PlaylistTitle: req.Title,
		Action:        ActionCreate,
		TotalTracks:   total,
	}

	e.sendProgress(progress, checkExistingUpdate(req.Title))

	existing, err := e.FindConflict(ctx, req.Title)
	if err != nil {
		return nil, err
	}

	action := req.OnConflict
	newTitle := req.NewTitle
	if existing != nil && action == ActionCreate {
		if resolve == nil {
			return nil, fmt.Errorf("%w: playlist %q already exists", shared.ErrPlaylistConflict, existing.Title)
		}
		resolution := resolve(*existing)
		action = resolution.Action
		if resolution.NewTitle != "" {
			newTitle = resolution.NewTitle
		}
	}

	if existing == nil {
		action = ActionCreate
	}

	var playlistID string
	existingVideos := map[string]bool{}

	switch {
	case existing != nil && action == ActionCancel:
		return nil, shared.ErrCancelled

	case existing != nil && action == ActionOverwrite:
		items, err := e.catalog.ListPlaylistItems(ctx, existing.ID)
		if err != nil {
			return e.fatal(result, action, fmt.Errorf("failed to list playlist items: %w", err))
		}
		for i, item := range items {
			e.sendProgress(progress, clearPlaylistUpdate(i+1, len(items), existing.Title))
			if err := e.catalog.RemovePlaylistItem(ctx, item.ID); err != nil {
				return e.fatal(result, action, fmt.Errorf("failed to clear playlist: %w", err))
			}
		}
		playlistID = existing.ID
		result.PlaylistTitle = existing.Title

	case existing != nil && action == ActionUpdate:
		items, err := e.catalog.ListPlaylistItems(ctx, existing.ID)
		if err != nil {
			return e.fatal(result, action, fmt.Errorf("failed to list playlist items: %w", err))
		}
		for _, item := range items {
			if item.VideoID != "" {
				existingVideos[item.VideoID] = true
			}
		}
		playlistID = existing.ID
		result.PlaylistTitle = existing.Title

	default:
		title := req.Title
		if existing != nil && action == ActionRename {
			title = newTitle
			if title == "" {
				title = RenameTitle(req.Title)
			}
		}

		e.sendProgress(progress, createPlaylistUpdate(title))
		playlistID, err = e.catalog.CreatePlaylist(ctx, title, req.Privacy)
		if err != nil {
			return e.fatal(result, action, fmt.Errorf("failed to create playlist: %w", err))
		}
		result.PlaylistTitle = title
	}

	result.Action = action
	result.PlaylistID = playlistID
	result.TrackResults = make([]TrackResult, 0, total)

	added := 0
	failed := 0

	for i, track := range req.Tracks {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", shared.ErrCancelled, ctx.Err())
		default:
		}

		e.sendProgress(progress, searchTrackUpdate(i+1, total, track))

		videoID, err := e.catalog.SearchBestMatch(ctx, track.Query())
		if err != nil {
			if isFatal(err) {
				return e.fatal(result, action, err)
			}
			failed++
			result.TrackResults = append(result.TrackResults, TrackResult{Track: track, Error: err})
			continue
		}

		if existingVideos[videoID] {
			added++
			result.TrackResults = append(result.TrackResults, TrackResult{Track: track, VideoID: videoID, Skipped: true})
			continue
		}

		e.sendProgress(progress, insertTrackUpdate(i+1, total, track))

		if err := e.catalog.InsertPlaylistItem(ctx, playlistID, videoID); err != nil {
			if isFatal(err) {
				return e.fatal(result, action, err)
			}
			failed++
			result.TrackResults = append(result.TrackResults, TrackResult{Track: track, VideoID: videoID, Error: err})
			continue
		}

		added++
		existingVideos[videoID] = true
		result.TrackResults = append(result.TrackResults, TrackResult{Track: track, VideoID: videoID})
	}

	result.Success = true
	result.AddedTracks = added
	result.FailedTracks = failed

	e.sendProgress(progress, doneUpdate(result))
	return result, nil
}

// fatal marks the whole batch failed and preserves the cause on the result.
func (e *Engine) fatal(result *Result, action Action, err error) (*Result, error) {
	result.Success = false
	result.Action = action
	result.AddedTracks = 0
	result.FailedTracks = result.TotalTracks
	result.Error = err
	return result, err
}

// isFatal reports whether an error should abort the whole build rather
// than fail a single track.
func isFatal(err error) bool {
	return errors.Is(err, shared.ErrTokenExpired) ||
		errors.Is(err, shared.ErrExternalService) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
