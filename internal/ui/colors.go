package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/desertthunder/gmsync/internal/tasks"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func Title(s string) string   { return styles.title.Render(s) }
func Success(s string) string { return styles.ok.Render(s) }
func Error(s string) string   { return styles.err.Render(s) }
func Warn(s string) string    { return styles.warn.Render(s) }
func Help(s string) string    { return styles.help.Render(s) }

// StateStyle picks the style a change event state is drawn with.
func StateStyle(s tasks.State) lipgloss.Style {
	switch s {
	case tasks.Succeeded:
		return styles.ok
	case tasks.FailedRetryable:
		return styles.warn
	case tasks.FailedFatal:
		return styles.err
	default:
		return styles.help
	}
}

// WorkerStateStyle picks the style a worker state is drawn with.
func WorkerStateStyle(s tasks.WorkerState) lipgloss.Style {
	switch s {
	case tasks.WorkerRunning:
		return styles.ok
	case tasks.WorkerHalted:
		return styles.err
	default:
		return styles.help
	}
}

// RenderUpdate renders u as a single colored line.
func RenderUpdate(u tasks.Update) string {
	return StateStyle(u.State).Render(u.Message())
}

// Table renders rows under headers with a rounded border and a bold header row.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.help).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return strings.TrimRight(t.String(), "\n")
}
