package tuiapp

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/micutio/metarwatch/internal/refresh"
)

type UpdateTickMsg time.Time

func updateTick() tea.Cmd {
	return tea.Every(
		time.Second,
		func(t time.Time) tea.Msg {
			return UpdateTickMsg(t)
		},
	)
}

type RefreshTickMsg time.Time

func refreshTick(interval time.Duration) tea.Cmd {
	return tea.Every(
		interval,
		func(t time.Time) tea.Msg {
			return RefreshTickMsg(t)
		},
	)
}

type RefreshResultMsg []refresh.Update

// refreshCmd fetches all due stations off the update loop.
func refreshCmd(ctx context.Context, refresher *refresh.Refresher) tea.Cmd {
	return func() tea.Msg {
		return RefreshResultMsg(refresher.Tick(ctx, time.Now()))
	}
}
