package top

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/gemini-quota-switch/internal/models"
	"github.com/j-veylop/gemini-quota-switch/internal/server"
)

// DefaultPollInterval is how often the dashboard re-reads /api/stats.
const DefaultPollInterval = 5 * time.Second

const requestTimeout = 30 * time.Second

// API is the subset of the server client the dashboard uses.
type API interface {
	Stats(ctx context.Context) (*server.StatsResponse, error)
	TrySwitch(ctx context.Context) (models.SwitchResult, error)
	Refresh(ctx context.Context) error
}

type (
	tickMsg time.Time

	statsMsg struct {
		stats *server.StatsResponse
		err   error
	}

	switchMsg struct {
		err    error
		result models.SwitchResult
	}

	refreshMsg struct {
		err error
	}
)

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchStatsCmd(api API) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		stats, err := api.Stats(ctx)
		return statsMsg{stats: stats, err: err}
	}
}

func trySwitchCmd(api API) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		result, err := api.TrySwitch(ctx)
		return switchMsg{result: result, err: err}
	}
}

func refreshCmd(api API) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return refreshMsg{err: api.Refresh(ctx)}
	}
}
