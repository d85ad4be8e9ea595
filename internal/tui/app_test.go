package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h0rv/sumup/internal/domain"
)

func updateApp(t *testing.T, m AppModel, msg tea.Msg) (AppModel, tea.Cmd) {
	t.Helper()
	model, cmd := m.Update(msg)
	return model.(AppModel), cmd
}

func TestAppModel_ScreenTransitions(t *testing.T) {
	app := NewAppModel(createTestDeps(createTestStore()), context.Background())
	require.Equal(t, ScreenBoard, app.Screen())

	app, cmd := updateApp(t, app, startRefreshMsg{})
	require.NotNil(t, cmd)
	require.NotNil(t, app.refresh)
	boardRefresh := app.refresh

	app, cmd = updateApp(t, app, openSettingsMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, ScreenSettings, app.Screen())
	assert.IsType(t, SettingsModel{}, app.currentModel)
	assert.Nil(t, app.refresh)
	assert.Error(t, boardRefresh.ctx.Err(), "leaving the board stops its refresh loop")

	app, _ = updateApp(t, app, closeScreenMsg{status: "Fields updated"})
	assert.Equal(t, ScreenBoard, app.Screen())
	assert.Nil(t, app.currentModel)
	assert.Equal(t, "Fields updated", app.board.statusMsg)
	require.NotNil(t, app.refresh)
	assert.NoError(t, app.refresh.ctx.Err())

	app, _ = updateApp(t, app, openValuesMsg{card: domain.CardRef{ID: "B", Name: "Login page"}})
	assert.Equal(t, ScreenValues, app.Screen())
	assert.Contains(t, app.View(), "Login page")

	app, cmd = updateApp(t, app, QuitMsg{})
	require.NotNil(t, cmd)
	assert.Nil(t, app.refresh)
}

func TestAppModel_StaleRefreshTickIgnored(t *testing.T) {
	app := NewAppModel(createTestDeps(createTestStore()), context.Background())
	app, _ = updateApp(t, app, startRefreshMsg{})
	stale := newAutoRefresh(context.Background())
	defer stale.cancel()

	_, cmd := updateApp(t, app, refreshTickMsg{source: stale})
	assert.Nil(t, cmd)

	app, cmd = updateApp(t, app, refreshTickMsg{source: app.refresh})
	assert.NotNil(t, cmd)
	assert.True(t, app.board.loading)

	updateApp(t, app, QuitMsg{})
}

func TestAppModel_BoardResultsWhileAway(t *testing.T) {
	deps := createTestDeps(createTestStore())
	app := NewAppModel(deps, context.Background())
	app, _ = updateApp(t, app, openSettingsMsg{})

	app, _ = updateApp(t, app, boardLoadedMsg{data: mustFetch(t, deps)})

	assert.True(t, app.board.loaded)
	assert.Equal(t, ScreenSettings, app.Screen())
}

func TestWaitForRefresh(t *testing.T) {
	ar := newAutoRefresh(context.Background())
	ar.ticks <- struct{}{}

	assert.Equal(t, refreshTickMsg{source: ar}, waitForRefresh(ar)())

	ar.cancel()
	assert.Nil(t, waitForRefresh(ar)())
}
