package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"shaztube/internal/auth"
	"shaztube/internal/shared"
	"shaztube/internal/tasks"
	"shaztube/internal/ui"
)

// TUI launches the interactive terminal workflow for a playlist build.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	tracks, _, err := r.parseExport(cmd.StringArg("path"))
	if err != nil {
		return err
	}

	config := r.resolveConfig(cmd.String("config"))

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

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/shaztube-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.logger = fileLogger

	title := cmd.String("title")
	if title == "" {
		title = config.Playlist.DefaultTitle
	}

	model := ui.NewModel(ctx, tasks.NewEngine(catalog), tracks, title, config.Playlist.Privacy)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
