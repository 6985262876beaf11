package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"shaztube/internal/models"
	"shaztube/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	TrackListView ViewState = iota
	ConfirmView
	ConflictView
	BuildView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	engine  *tasks.Engine
	privacy string
	width   int
	height  int

	tracks     []models.Track
	trackList  list.Model
	titleInput textinput.Model

	conflict     *models.Playlist
	conflictChan chan models.Playlist
	decisionChan chan tasks.Resolution
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate

	result *tasks.Result
	err    error

	help help.Model
	keys keyMap
}

type progressUpdateMsg tasks.ProgressUpdate

type conflictMsg struct {
	existing models.Playlist
}

type buildCompleteMsg struct {
	result *tasks.Result
	err    error
}

// NewModel creates a new TUI model for the given parsed tracks.
func NewModel(ctx context.Context, engine *tasks.Engine, tracks []models.Track, defaultTitle, privacy string) *Model {
	titleInput := textinput.New()
	titleInput.Placeholder = defaultTitle
	titleInput.SetValue(defaultTitle)
	titleInput.CharLimit = 150

	return &Model{
		ctx:        ctx,
		view:       TrackListView,
		engine:     engine,
		privacy:    privacy,
		tracks:     tracks,
		trackList:  newTrackList(tracks),
		titleInput: titleInput,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ConflictView:
			return m.handleConflictKeys(msg)
		case BuildView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForEvent()

	case conflictMsg:
		m.conflict = &msg.existing
		m.view = ConflictView
		return m, nil

	case buildCompleteMsg:
		m.result = msg.result
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}

	if m.view == TrackListView {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	case ConflictView:
		return m.renderConflict()
	case BuildView:
		return m.renderBuild()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.view = ConfirmView
		m.titleInput.Focus()
		return m, textinput.Blink
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = TrackListView
		m.titleInput.Blur()
		return m, nil
	case "enter":
		m.titleInput.Blur()
		m.view = BuildView
		return m, m.startBuild()
	}

	var cmd tea.Cmd
	m.titleInput, cmd = m.titleInput.Update(msg)
	return m, cmd
}

func (m *Model) handleConflictKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var resolution tasks.Resolution

	switch msg.String() {
	case "o":
		resolution = tasks.Resolution{Action: tasks.ActionOverwrite}
	case "u":
		resolution = tasks.Resolution{Action: tasks.ActionUpdate}
	case "r":
		resolution = tasks.Resolution{Action: tasks.ActionRename}
	case "esc", "c", "q", "ctrl+c":
		resolution = tasks.Resolution{Action: tasks.ActionCancel}
	default:
		return m, nil
	}

	m.view = BuildView
	return m, m.sendDecision(resolution)
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = TrackListView
		m.conflict = nil
		m.result = nil
		m.err = nil
		m.progress = tasks.ProgressUpdate{}
		return m, nil
	}
	return m, nil
}

// title returns the playlist title currently entered, falling back to
// the placeholder default.
func (m *Model) title() string {
	if value := m.titleInput.Value(); value != "" {
		return value
	}
	return m.titleInput.Placeholder
}

// startBuild launches the reconciliation engine in a goroutine.
//
// The resolver closure suspends the engine on the decision channel while
// ConflictView collects the user's choice.
func (m *Model) startBuild() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.conflictChan = make(chan models.Playlist, 1)
	m.decisionChan = make(chan tasks.Resolution)

	progressChan := m.progressChan
	conflictChan := m.conflictChan
	decisionChan := m.decisionChan

	resolve := func(existing models.Playlist) tasks.Resolution {
		conflictChan <- existing
		return <-decisionChan
	}

	req := tasks.Request{
		Title:   m.title(),
		Privacy: m.privacy,
		Tracks:  m.tracks,
	}

	go func() {
		result, err := m.engine.Reconcile(m.ctx, req, resolve, progressChan)
		m.result = result
		m.err = err
		close(progressChan)
	}()

	return m.waitForEvent()
}

// sendDecision unblocks the engine goroutine with the chosen resolution.
func (m *Model) sendDecision(resolution tasks.Resolution) tea.Cmd {
	decisionChan := m.decisionChan
	return func() tea.Msg {
		decisionChan <- resolution
		return m.waitForEvent()()
	}
}

// waitForEvent listens for the next progress update or conflict from the
// engine goroutine.
func (m *Model) waitForEvent() tea.Cmd {
	progressChan := m.progressChan
	conflictChan := m.conflictChan

	return func() tea.Msg {
		if progressChan == nil {
			return buildCompleteMsg{result: m.result, err: m.err}
		}

		select {
		case existing := <-conflictChan:
			return conflictMsg{existing: existing}
		case update, ok := <-progressChan:
			if !ok {
				return buildCompleteMsg{result: m.result, err: m.err}
			}
			return progressUpdateMsg(update)
		}
	}
}

func (m *Model) renderTrackList() string {
	buildKey := key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "build playlist"),
	)
	helpKeys := []key.Binding{buildKey, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render("Build YouTube playlist")
	info := fmt.Sprintf("\nTracks: %d\n\nPlaylist title:\n%s\n", len(m.tracks), m.titleInput.View())

	confirmKey := key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "start"),
	)
	helpKeys := []key.Binding{confirmKey, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderConflict() string {
	title := styles.warn.Render(fmt.Sprintf("A playlist titled '%s' already exists", m.conflict.Title))
	info := fmt.Sprintf("\nIt currently holds %d items.\n", m.conflict.ItemCount)

	cancelKey := key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	)
	helpKeys := []key.Binding{m.keys.overwrite, m.keys.update, m.keys.rename, cancelKey}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderBuild() string {
	title := styles.title.Render("Building Playlist")

	var phase string
	switch m.progress.Phase {
	case tasks.CheckExisting:
		phase = "Checking for existing playlists..."
	case tasks.ClearPlaylist:
		phase = fmt.Sprintf("Clearing existing playlist (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.CreatePlaylist:
		phase = "Creating playlist on YouTube..."
	case tasks.SearchTracks:
		phase = fmt.Sprintf("Searching tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.InsertTracks:
		phase = fmt.Sprintf("Adding tracks (%d/%d)", m.progress.Step, m.progress.Total)
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Build failed: %v\n\nPress r to retry, q to quit", m.err))
	}

	if m.result == nil {
		return styles.err.Render("No result available\n\nPress r to retry, q to quit")
	}

	title := styles.ok.Render("✓ Playlist Ready!")
	info := fmt.Sprintf(
		"\nPlaylist: %s\nAdded: %d/%d tracks\nhttps://www.youtube.com/playlist?list=%s",
		m.result.PlaylistTitle,
		m.result.AddedTracks,
		m.result.TotalTracks,
		m.result.PlaylistID,
	)

	var failed string
	if m.result.FailedTracks > 0 {
		failed = fmt.Sprintf("\n\n%s", styles.warn.Render(fmt.Sprintf("Failed to match %d tracks:", m.result.FailedTracks)))
		for _, tr := range m.result.TrackResults {
			if tr.Error != nil {
				failed += fmt.Sprintf("\n  • %s - %s", tr.Track.Artist, tr.Track.Title)
			}
		}
	}

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}
