package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/h0rv/sumup/internal/host"
	"github.com/h0rv/sumup/internal/powerup"
	"github.com/h0rv/sumup/internal/refresh"
)

// AppScreen represents the different screens in the application flow.
type AppScreen int

const (
	ScreenBoard AppScreen = iota
	ScreenSettings
	ScreenValues
)

// Deps are the collaborators the TUI works with.
type Deps struct {
	PowerUp *powerup.PowerUp
	Session host.Session // Storage, card source and board
	Title   string       // Shown in the header; defaults to the board ID
	Refresh refresh.Config
	Logger  *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.PowerUp == nil {
		d.PowerUp = powerup.New(powerup.DefaultPolicy(), d.Logger)
	}
	return d
}

// refreshTickMsg asks the board to reload because its data may have changed.
type refreshTickMsg struct {
	source *autoRefresh
}

// autoRefresh is the refresh loop running while the board is visible.
type autoRefresh struct {
	ctx    context.Context
	cancel context.CancelFunc
	ticks  chan struct{}
}

// AppModel is the root Bubble Tea model that manages screen transitions.
// The board stays alive underneath the settings and values screens so its
// selection survives a round trip.
type AppModel struct {
	deps Deps
	ctx  context.Context

	currentScreen AppScreen
	board         BoardModel
	currentModel  tea.Model // Settings or values screen
	refresh       *autoRefresh

	width  int
	height int
}

// NewAppModel creates the app, starting on the board.
func NewAppModel(deps Deps, ctx context.Context) AppModel {
	deps = deps.withDefaults()
	return AppModel{
		deps:          deps,
		ctx:           ctx,
		currentScreen: ScreenBoard,
		board:         NewBoardModel(deps, ctx),
	}
}

// Init loads the board and starts refreshing it.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(
		m.board.Init(),
		func() tea.Msg { return startRefreshMsg{} },
	)
}

// startRefreshMsg starts the refresh loop once the program is running.
type startRefreshMsg struct{}

// Update handles messages and transitions between screens.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		var cmds []tea.Cmd
		board, cmd := m.board.Update(msg)
		m.board = board.(BoardModel)
		cmds = append(cmds, cmd)
		if m.currentModel != nil {
			m.currentModel, cmd = m.currentModel.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case QuitMsg:
		m.stopRefresh()
		return m, tea.Quit

	case startRefreshMsg:
		if m.currentScreen != ScreenBoard {
			return m, nil
		}
		m.stopRefresh()
		m.refresh = newAutoRefresh(m.ctx)
		return m, m.runRefresh()

	case refreshTickMsg:
		if m.refresh == nil || msg.source != m.refresh {
			return m, nil
		}
		board, cmd := m.board.Update(msg)
		m.board = board.(BoardModel)
		return m, tea.Batch(cmd, waitForRefresh(m.refresh))

	case openSettingsMsg:
		m.stopRefresh()
		m.currentScreen = ScreenSettings
		m.currentModel = NewSettingsModel(m.deps, m.ctx)
		return m, m.initScreen()

	case openValuesMsg:
		m.stopRefresh()
		m.currentScreen = ScreenValues
		m.currentModel = NewValuesModel(m.deps, m.ctx, msg.card)
		return m, m.initScreen()

	case closeScreenMsg:
		m.currentScreen = ScreenBoard
		m.currentModel = nil
		m.board.statusMsg = msg.status
		m.board.loading = true
		m.stopRefresh()
		m.refresh = newAutoRefresh(m.ctx)
		return m, tea.Batch(m.board.load(), m.runRefresh())

	// Board results arrive even while another screen is open.
	case boardLoadedMsg, moveDoneMsg, totalsSavedMsg, spinner.TickMsg:
		board, cmd := m.board.Update(msg)
		m.board = board.(BoardModel)
		return m, cmd
	}

	if m.currentScreen == ScreenBoard || m.currentModel == nil {
		board, cmd := m.board.Update(msg)
		m.board = board.(BoardModel)
		return m, cmd
	}

	var cmd tea.Cmd
	m.currentModel, cmd = m.currentModel.Update(msg)
	return m, cmd
}

// View renders the current screen.
func (m AppModel) View() string {
	if m.currentScreen == ScreenBoard || m.currentModel == nil {
		return m.board.View()
	}
	return m.currentModel.View()
}

// Screen returns the visible screen.
func (m AppModel) Screen() AppScreen {
	return m.currentScreen
}

// initScreen initializes the current screen and sizes it.
func (m AppModel) initScreen() tea.Cmd {
	cmd := m.currentModel.Init()
	if m.width == 0 {
		return cmd
	}
	size := tea.WindowSizeMsg{Width: m.width, Height: m.height}
	return tea.Batch(cmd, func() tea.Msg { return size })
}

func newAutoRefresh(parent context.Context) *autoRefresh {
	ctx, cancel := context.WithCancel(parent)
	return &autoRefresh{
		ctx:    ctx,
		cancel: cancel,
		ticks:  make(chan struct{}, 1),
	}
}

// runRefresh runs the refresh loop until the board is left and waits for
// its first tick.
func (m AppModel) runRefresh() tea.Cmd {
	ar := m.refresh
	if ar == nil {
		return nil
	}
	storage := m.deps.Session.Storage
	cfg := m.deps.Refresh
	logger := m.deps.Logger

	run := func() tea.Msg {
		_ = refresh.Run(ar.ctx, storage, cfg, logger, func(context.Context) {
			select {
			case ar.ticks <- struct{}{}:
			default:
			}
		})
		return nil
	}
	return tea.Batch(run, waitForRefresh(ar))
}

// waitForRefresh delivers the next tick, or nothing once the loop stops.
func waitForRefresh(ar *autoRefresh) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ar.ticks:
			return refreshTickMsg{source: ar}
		case <-ar.ctx.Done():
			return nil
		}
	}
}

func (m *AppModel) stopRefresh() {
	if m.refresh != nil {
		m.refresh.cancel()
		m.refresh = nil
	}
}
