// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for playlist building:
//  1. [TrackListView] : Review tracks parsed from the Shazam export
//  2. [ConfirmView] : Pick a playlist title and confirm the build
//  3. [ConflictView] : Choose a policy when the title already exists
//  4. [BuildView] : Monitor real-time progress updates
//  5. [ResultView] : Display success metrics and failed matches
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the reconciliation engine, providing non-blocking status reporting during builds.
// Conflict decisions travel the other way: the engine blocks on a decision channel while [ConflictView] is on screen.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
