// Package ui renders sync progress in the terminal.
//
// The monitor ([Model]) implements bubbletea's Elm-style Init/Update/View pattern on top of a running
// [tasks.Service]: a list of integration workers with their counters, and a rolling feed of change
// event updates read from the workers' update channel. Selecting a worker with enter narrows the feed
// to its events, esc widens it again. Quitting cancels the workers and waits for them to stop.
//
// The package also carries the [lipgloss] palette used by non-interactive commands for colored output
// and bordered tables.
package ui
