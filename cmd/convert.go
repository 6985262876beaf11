package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"shaztube/internal/auth"
	"shaztube/internal/models"
	"shaztube/internal/shared"
	"shaztube/internal/tasks"
)

// Convert parses a Shazam CSV export and reconciles it into a YouTube playlist.
func (r *Runner) Convert(ctx context.Context, cmd *cli.Command) error {
	tracks, stats, err := r.parseExport(cmd.StringArg("path"))
	if err != nil {
		return err
	}

	configPath := cmd.String("config")
	config := r.resolveConfig(configPath)

	credential, err := auth.StoredCredential(config.Credentials.Google)
	if err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) || errors.Is(err, shared.ErrTokenExpired) {
			return fmt.Errorf("%w: run 'shaztube auth' first", err)
		}
		return err
	}

	catalog, err := r.newCatalog(ctx, credential.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}

	title := cmd.String("title")
	if title == "" {
		title = config.Playlist.DefaultTitle
	}
	privacy := cmd.String("privacy")
	if privacy == "" {
		privacy = config.Playlist.Privacy
	}

	req := tasks.Request{
		Title:    title,
		Privacy:  privacy,
		Tracks:   tracks,
		NewTitle: cmd.String("new-title"),
	}

	var resolve tasks.ConflictResolver
	policy := cmd.String("on-conflict")
	if policy == "ask" {
		resolve = r.askResolver(title)
	} else {
		if req.OnConflict, err = tasks.ParseAction(policy); err != nil {
			return err
		}
	}

	r.writePlain("Parsed %d tracks (%d rows seen)\n", stats.RowsKept, stats.RowsSeen)

	engine := tasks.NewEngine(catalog)
	progress := make(chan tasks.ProgressUpdate, 8)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progress {
			r.printProgress(update)
		}
	}()

	result, err := engine.Reconcile(ctx, req, resolve, progress)
	close(progress)
	<-printed

	if err != nil {
		if errors.Is(err, shared.ErrPlaylistConflict) {
			return fmt.Errorf("%w: a playlist titled %q already exists, pass --on-conflict", err, title)
		}
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(resultPayload(result), cmd.Bool("pretty"))
	}

	r.writePlainln("✓ Playlist ready: %s", result.PlaylistTitle)
	r.writePlain("  https://www.youtube.com/playlist?list=%s\n", result.PlaylistID)
	r.writePlain("  Added %d/%d tracks\n", result.AddedTracks, result.TotalTracks)

	if result.FailedTracks > 0 {
		r.writePlain("\n⚠ %d tracks could not be matched:\n", result.FailedTracks)
		for _, tr := range result.TrackResults {
			if tr.Error != nil {
				r.writePlain("  • %s - %s\n", tr.Track.Artist, tr.Track.Title)
			}
		}
	}

	return nil
}

// askResolver prompts for a conflict policy with an interactive select.
func (r *Runner) askResolver(title string) tasks.ConflictResolver {
	return func(existing models.Playlist) tasks.Resolution {
		var choice string

		err := huh.NewSelect[string]().
			Title(fmt.Sprintf("A playlist titled %q already exists (%d items)", existing.Title, existing.ItemCount)).
			Options(
				huh.NewOption("Overwrite: replace its contents", "overwrite"),
				huh.NewOption("Update: add only missing tracks", "update"),
				huh.NewOption(fmt.Sprintf("Rename: create %q instead", tasks.RenameTitle(title)), "rename"),
				huh.NewOption("Cancel", "cancel"),
			).
			Value(&choice).
			Run()
		if err != nil {
			return tasks.Resolution{Action: tasks.ActionCancel}
		}

		action, parseErr := tasks.ParseAction(choice)
		if parseErr != nil || choice == "cancel" {
			return tasks.Resolution{Action: tasks.ActionCancel}
		}
		return tasks.Resolution{Action: action}
	}
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.CheckExisting:
		r.writePlain("→ Checking for existing playlists...\n")
	case tasks.ClearPlaylist:
		if update.Step == 1 {
			r.writePlain("→ Clearing existing playlist (%d items)\n", update.Total)
		}
	case tasks.CreatePlaylist:
		r.writePlain("→ %s\n", update.Message)
	case tasks.SearchTracks, tasks.InsertTracks:
		r.writePlain("  %s\n", update.Message)
	case tasks.Done:
		r.writePlain("→ %s\n", update.Message)
	}
}

// resultPayload shapes a build result for JSON output.
func resultPayload(result *tasks.Result) map[string]any {
	failed := []map[string]string{}
	for _, tr := range result.TrackResults {
		if tr.Error != nil {
			failed = append(failed, map[string]string{
				"title":  tr.Track.Title,
				"artist": tr.Track.Artist,
			})
		}
	}

	return map[string]any{
		"success":       result.Success,
		"playlistId":    result.PlaylistID,
		"playlistTitle": result.PlaylistTitle,
		"playlistUrl":   fmt.Sprintf("https://www.youtube.com/playlist?list=%s", result.PlaylistID),
		"action":        result.Action.String(),
		"totalTracks":   result.TotalTracks,
		"addedTracks":   result.AddedTracks,
		"failedTracks":  result.FailedTracks,
		"failed":        failed,
	}
}
