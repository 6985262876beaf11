package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"shaztube/internal/formatter"
	"shaztube/internal/models"
	"shaztube/internal/shared"
	"shaztube/internal/shazam"
)

// Parse normalizes a Shazam CSV export and prints the recognized tracks.
func (r *Runner) Parse(ctx context.Context, cmd *cli.Command) error {
	tracks, stats, err := r.parseExport(cmd.StringArg("path"))
	if err != nil {
		return err
	}

	if format := cmd.String("format"); format != "" {
		outputPath := cmd.String("output")
		if outputPath == "" {
			outputPath = fmt.Sprintf("shazam_tracks.%s", exportExtension(format))
		}

		written, err := formatter.WriteExport(format, "Shazam Tracks", outputPath, tracks)
		if err != nil {
			return err
		}

		r.writePlain("✓ Tracks exported to %s\n", written)
		return nil
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	r.writePlain("Parsed %d tracks (%d rows seen)\n\n", stats.RowsKept, stats.RowsSeen)
	for i, track := range tracks {
		r.writePlain("%d. %s - %s\n", i+1, track.Artist, track.Title)
		if track.Album != "" {
			r.writePlain("   Album: %s\n", track.Album)
		}
	}

	return nil
}

// parseExport reads and normalizes the CSV file shared by the parse,
// convert, and tui commands.
func (r *Runner) parseExport(path string) ([]models.Track, shazam.Stats, error) {
	var stats shazam.Stats

	if strings.TrimSpace(path) == "" {
		return nil, stats, fmt.Errorf("%w: path to a Shazam CSV export is required", shared.ErrMissingArgument)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, stats, fmt.Errorf("failed to read %s: %w", path, err)
	}

	r.logger.Infof("parsing shazam export %v", path)

	tracks, stats, err := shazam.ParseWithStats(string(data))
	if err != nil {
		return nil, stats, err
	}

	return tracks, stats, nil
}

func exportExtension(format string) string {
	switch format {
	case "markdown", "md":
		return "md"
	case "text", "txt":
		return "txt"
	default:
		return format
	}
}
