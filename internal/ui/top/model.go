// Package top implements a live terminal view of a running quota server.
package top

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/gemini-quota-switch/internal/server"
	"github.com/j-veylop/gemini-quota-switch/internal/ui/components"
)

// KeyMap defines the dashboard keybindings.
type KeyMap struct {
	Switch  key.Binding
	Refresh key.Binding
	Scroll  key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Switch:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "try switch")),
		Refresh: key.NewBinding(key.WithKeys("r", "ctrl+r"), key.WithHelp("r", "refresh")),
		Scroll:  key.NewBinding(key.WithKeys("up", "down", "k", "j"), key.WithHelp("↑/↓", "scroll")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp returns key bindings for the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Switch, k.Refresh, k.Scroll, k.Quit}
}

// Model is the dashboard model.
type Model struct {
	api      API
	stats    *server.StatsResponse
	err      error
	now      func() time.Time
	keymap   KeyMap
	spinner  components.LoadingSpinner
	bar      components.QuotaBar
	viewport viewport.Model
	status   string
	interval time.Duration
	width    int
	height   int
	statusOK bool
	busy     bool
	ready    bool
}

// New creates a dashboard polling api every interval.
func New(api API, interval time.Duration) *Model {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Model{
		api:      api,
		interval: interval,
		now:      time.Now,
		keymap:   DefaultKeyMap(),
		spinner:  components.NewSpinner("Waiting for first refresh..."),
		bar:      components.NewQuotaBarWithWidth(24),
		viewport: viewport.New(80, 20),
	}
}

// Run starts the dashboard and blocks until the user quits or ctx is done.
func Run(ctx context.Context, api API, interval time.Duration) error {
	p := tea.NewProgram(New(api, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init starts polling.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick(),
		fetchStatsCmd(m.api),
		tickCmd(m.interval),
	)
}

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleWindowSize(msg)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		return m, tea.Batch(fetchStatsCmd(m.api), tickCmd(m.interval))

	case statsMsg:
		m.err = msg.err
		if msg.err == nil {
			m.stats = msg.stats
		}
		m.syncViewport()
		return m, nil

	case switchMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.setStatus(fmt.Sprintf("Switch failed: %v", msg.err), false)
		case msg.result.Switched:
			m.setStatus("Switched to "+msg.result.ProfileID, true)
		default:
			m.setStatus("No switch needed, current is "+msg.result.ProfileID, true)
		}
		return m, fetchStatsCmd(m.api)

	case refreshMsg:
		m.busy = false
		switch {
		case errors.Is(msg.err, server.ErrRefreshRunning):
			m.setStatus("Refresh already running", true)
		case msg.err != nil:
			m.setStatus(fmt.Sprintf("Refresh failed: %v", msg.err), false)
		default:
			m.setStatus("Refresh started", true)
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) {
	m.width, m.height = msg.Width, msg.Height
	m.ready = true
	m.viewport.Width = msg.Width
	m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 1)
	m.bar.SetWidth(max(min(msg.Width-rowFixedWidth, 40), 10))
	m.syncViewport()
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit
	case key.Matches(msg, m.keymap.Switch):
		if m.busy {
			return nil
		}
		m.busy = true
		m.setStatus("Switching...", true)
		return trySwitchCmd(m.api)
	case key.Matches(msg, m.keymap.Refresh):
		if m.busy {
			return nil
		}
		m.busy = true
		return refreshCmd(m.api)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return cmd
}

func (m *Model) setStatus(text string, ok bool) {
	m.status = text
	m.statusOK = ok
}

func (m *Model) syncViewport() {
	m.viewport.SetContent(m.renderRows())
}
