package tasks

import (
	"fmt"

	"shaztube/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	CheckExisting Phase = iota
	ClearPlaylist
	CreatePlaylist
	SearchTracks
	InsertTracks
	Done
)

func (p Phase) String() string {
	switch p {
	case CheckExisting:
		return "check_existing"
	case ClearPlaylist:
		return "clear_playlist"
	case CreatePlaylist:
		return "create_playlist"
	case SearchTracks:
		return "search_tracks"
	case InsertTracks:
		return "insert_tracks"
	case Done:
		return "done"
	default:
		return ""
	}
}

func checkExistingUpdate(title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckExisting,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Checking for existing playlist %q...", title),
	}
}

func clearPlaylistUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ClearPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Removing items from %q...", step, total, title),
	}
}

func createPlaylistUpdate(title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q...", title),
	}
}

func searchTrackUpdate(step, total int, track models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Searching: %s", step, total, track.String()),
	}
}

func insertTrackUpdate(step, total int, track models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   InsertTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding: %s", step, total, track.String()),
	}
}

func doneUpdate(result *Result) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    result.TotalTracks,
		Total:   result.TotalTracks,
		Message: fmt.Sprintf("Added %d of %d tracks to %q", result.AddedTracks, result.TotalTracks, result.PlaylistTitle),
		Data:    result,
	}
}
