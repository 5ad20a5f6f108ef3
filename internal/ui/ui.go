package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/gmsync/internal/tasks"
)

const (
	feedSize        = 200
	refreshInterval = time.Second
)

var _ list.Item = workerItem{}

// StatusSource reports worker snapshots. Implemented by [tasks.Service].
type StatusSource interface {
	Status() []tasks.WorkerStatus
}

// Options wires the monitor to a running service.
type Options struct {
	Source  StatusSource
	Updates <-chan tasks.Update
	Done    <-chan struct{}    // Closed once the service stopped
	Result  func() error       // The service's result, read after Done is closed
	Cancel  context.CancelFunc // Stops the service
}

// Model is the sync monitor.
type Model struct {
	source  StatusSource
	updates <-chan tasks.Update
	done    <-chan struct{}
	result  func() error
	cancel  context.CancelFunc

	width   int
	height  int
	workers list.Model
	feed    []tasks.Update
	filter  string
	spinner spinner.Model

	finished bool
	err      error
	help     help.Model
	keys     keyMap
}

// keyMap defines the [key.Binding] mapping for the monitor.
type keyMap struct {
	up     key.Binding
	down   key.Binding
	filter key.Binding
	clear  key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		filter: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "only this worker")),
		clear:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "all workers")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// workerItem wraps [tasks.WorkerStatus] to implement [list.Item].
type workerItem struct {
	status tasks.WorkerStatus
}

func (i workerItem) FilterValue() string { return i.status.Name }
func (i workerItem) Title() string       { return i.status.Name }
func (i workerItem) Description() string {
	desc := fmt.Sprintf("%s • %d synced • %d failed • %d pending",
		WorkerStateStyle(i.status.State).Render(i.status.State.String()),
		i.status.Processed, i.status.Failed, i.status.Pending)
	if i.status.LastError != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.status.LastError)
	}
	return desc
}

type updateMsg tasks.Update

type refreshMsg time.Time

type doneMsg struct{}

// NewModel creates a monitor over a running service.
func NewModel(opts Options) *Model {
	workers := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	workers.Title = "Integrations"
	workers.SetShowHelp(false)

	m := &Model{
		source:  opts.Source,
		updates: opts.Updates,
		done:    opts.Done,
		result:  opts.Result,
		cancel:  opts.Cancel,
		workers: workers,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
	m.refresh()
	return m
}

// Init starts listening for updates and refreshing worker counters.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), m.waitForDone(), m.tick(), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.workers.SetSize(msg.Width-4, msg.Height/2)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case updateMsg:
		m.push(tasks.Update(msg))
		return m, tea.Batch(m.refresh(), m.waitForUpdate())

	case refreshMsg:
		return m, tea.Batch(m.refresh(), m.tick())

	case doneMsg:
		m.finished = true
		m.err = m.serviceErr()
		return m, m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.workers, cmd = m.workers.Update(msg)
	return m, cmd
}

// View renders the worker list above the event feed.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.workers.View())
	b.WriteString("\n\n")

	heading := "Events"
	if m.filter != "" {
		heading = fmt.Sprintf("Events for %s", m.filter)
	}
	b.WriteString(Title(heading))
	b.WriteString("\n")

	for _, u := range m.visible() {
		b.WriteString(RenderUpdate(u))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.finished && m.err != nil:
		b.WriteString(Error(fmt.Sprintf("Stopped: %v", m.err)))
	case m.finished:
		b.WriteString(Success("All workers stopped"))
	default:
		b.WriteString(m.spinner.View() + " " + Help("syncing"))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.filter, m.keys.clear, m.keys.quit}))
	return b.String()
}

// Wait returns the service result, blocking until the service stopped if the monitor quit first.
func (m *Model) Wait() error {
	if m.done != nil {
		<-m.done
	}
	m.err = m.serviceErr()
	return m.err
}

func (m *Model) serviceErr() error {
	if m.result == nil {
		return nil
	}
	return m.result()
}

// Filter returns the worker the feed is narrowed to, if any.
func (m *Model) Filter() string {
	return m.filter
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.filter):
		if item, ok := m.workers.SelectedItem().(workerItem); ok {
			m.filter = item.status.Name
		}
		return m, nil
	case key.Matches(msg, m.keys.clear):
		m.filter = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.workers, cmd = m.workers.Update(msg)
	return m, cmd
}

func (m *Model) push(u tasks.Update) {
	m.feed = append(m.feed, u)
	if len(m.feed) > feedSize {
		m.feed = m.feed[len(m.feed)-feedSize:]
	}
}

// visible returns the feed entries that fit the screen, newest last.
func (m *Model) visible() []tasks.Update {
	var out []tasks.Update
	for _, u := range m.feed {
		if m.filter == "" || u.Integration == m.filter {
			out = append(out, u)
		}
	}

	limit := m.height/2 - 6
	if limit < 5 {
		limit = 5
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (m *Model) refresh() tea.Cmd {
	if m.source == nil {
		return nil
	}
	statuses := m.source.Status()
	items := make([]list.Item, len(statuses))
	for i, s := range statuses {
		items[i] = workerItem{status: s}
	}
	return m.workers.SetItems(items)
}

func (m *Model) waitForUpdate() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	updates := m.updates
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return nil
		}
		return updateMsg(u)
	}
}

func (m *Model) waitForDone() tea.Cmd {
	if m.done == nil {
		return nil
	}
	done := m.done
	return func() tea.Msg {
		<-done
		return doneMsg{}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}
