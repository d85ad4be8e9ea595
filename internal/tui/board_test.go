package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/host"
	"github.com/h0rv/sumup/internal/powerup"
	"github.com/h0rv/sumup/internal/settings"
	"github.com/h0rv/sumup/internal/storage/memory"
	"github.com/h0rv/sumup/internal/store"
)

// createTestStore creates a board with three lists
func createTestStore() *store.Store {
	s := store.New()
	s.SetBoard(&domain.Board{ID: "b1", Name: "Sprint 12"})
	s.UpsertLists([]domain.List{
		{ID: "todo", Name: "To Do", Pos: 1},
		{ID: "doing", Name: "In Progress", Pos: 2},
		{ID: "done", Name: "Done", Pos: 3},
	})
	s.UpsertCards([]domain.CardRef{
		{ID: "A", Name: "Summary", ListID: "todo", Pos: 1},
		{ID: "B", Name: "Login page", ListID: "todo", Pos: 2},
		{ID: "C", Name: "Signup page", ListID: "todo", Pos: 3, URL: "https://example.com/c"},
		{ID: "D", Name: "Billing", ListID: "doing", Pos: 1},
	})
	return s
}

// createTestDeps wires the test board to in-memory storage
func createTestDeps(cards host.CardSource) Deps {
	return Deps{
		PowerUp: powerup.New(powerup.DefaultPolicy(), zap.NewNop()),
		Session: host.Session{
			Storage: memory.New(),
			Cards:   cards,
			Context: host.Context{Board: "b1"},
		},
		Title:  "Sprint 12",
		Logger: zap.NewNop(),
	}
}

// addPoints adds a Points field with B=5 and C=3
func addPoints(t *testing.T, deps Deps) domain.Field {
	t.Helper()
	ctx := context.Background()
	field, err := settings.AddField(ctx, deps.Session, "Points")
	require.NoError(t, err)
	_, err = settings.SetValue(ctx, deps.Session, "B", field.ID, "5")
	require.NoError(t, err)
	_, err = settings.SetValue(ctx, deps.Session, "C", field.ID, "3")
	require.NoError(t, err)
	return field
}

// loadedBoard returns a board model after its first load
func loadedBoard(t *testing.T, deps Deps) BoardModel {
	t.Helper()
	board := NewBoardModel(deps, context.Background())
	board.width = 150
	board.height = 30
	return update(t, board, board.load()())
}

func update(t *testing.T, board BoardModel, msg tea.Msg) BoardModel {
	t.Helper()
	model, _ := board.Update(msg)
	return model.(BoardModel)
}

func press(t *testing.T, board BoardModel, keys string) (BoardModel, tea.Cmd) {
	t.Helper()
	model, cmd := board.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
	return model.(BoardModel), cmd
}

func TestBoardModel_Load(t *testing.T) {
	deps := createTestDeps(createTestStore())
	addPoints(t, deps)

	board := loadedBoard(t, deps)

	require.True(t, board.loaded)
	assert.False(t, board.loading)
	require.Len(t, board.data.lists, 3)
	assert.Equal(t, "todo", board.data.lists[0].ID)
	assert.Equal(t, "done", board.data.lists[2].ID)
	assert.Len(t, board.filteredCards["todo"], 3)
	assert.Len(t, board.filteredCards["doing"], 1)
	assert.Empty(t, board.filteredCards["done"])

	t.Run("first card carries the list totals", func(t *testing.T) {
		badges := board.data.badges["A"]
		require.Len(t, badges, 1)
		assert.Equal(t, domain.BadgeSum, badges[0].Kind)
		assert.Equal(t, "∑ Points: 8", badges[0].Text)
	})

	t.Run("other cards carry their values", func(t *testing.T) {
		badges := board.data.badges["B"]
		require.Len(t, badges, 1)
		assert.Equal(t, "Points: 5", badges[0].Text)
	})

	t.Run("single card list shows no zero total", func(t *testing.T) {
		assert.Empty(t, board.data.badges["D"])
	})
}

func TestBoardModel_LoadWithoutFields(t *testing.T) {
	board := loadedBoard(t, createTestDeps(createTestStore()))

	assert.Empty(t, board.data.fields)
	assert.Empty(t, board.data.badges)
	assert.Len(t, board.filteredCards["todo"], 3)
}

func TestBoardModel_LoadWithoutCardSource(t *testing.T) {
	board := loadedBoard(t, createTestDeps(nil))

	assert.False(t, board.loaded)
	assert.Contains(t, board.errorToast, "no card source")
	require.NotPanics(t, func() {
		_ = board.View()
	})
}

func TestBoardModel_ApplyFilterWithText(t *testing.T) {
	board := loadedBoard(t, createTestDeps(createTestStore()))

	board.filterText = "page"
	(&board).applyFilter()

	assert.Len(t, board.filteredCards["todo"], 2)
	assert.Empty(t, board.filteredCards["doing"])
}

func TestBoardModel_FilterMode(t *testing.T) {
	board := loadedBoard(t, createTestDeps(createTestStore()))

	board, _ = press(t, board, "/")
	require.True(t, board.filterMode)
	board, _ = press(t, board, "bill")
	board = update(t, board, tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, board.filterMode)
	assert.Equal(t, "bill", board.filterText)
	assert.Empty(t, board.filteredCards["todo"])
	assert.Len(t, board.filteredCards["doing"], 1)
}

func TestBoardModel_Navigation(t *testing.T) {
	board := loadedBoard(t, createTestDeps(createTestStore()))

	assert.Equal(t, 0, board.selectedColumn)

	board, _ = press(t, board, "l")
	assert.Equal(t, 1, board.selectedColumn)

	board, _ = press(t, board, "l")
	board, _ = press(t, board, "l")
	assert.Equal(t, 2, board.selectedColumn, "stops at the last list")

	board, _ = press(t, board, "h")
	assert.Equal(t, 1, board.selectedColumn)
}

func TestBoardModel_CardNavigation(t *testing.T) {
	board := loadedBoard(t, createTestDeps(createTestStore()))

	board, _ = press(t, board, "j")
	assert.Equal(t, 1, board.selectedCard["todo"])

	board, _ = press(t, board, "G")
	assert.Equal(t, 2, board.selectedCard["todo"])

	board, _ = press(t, board, "j")
	assert.Equal(t, 2, board.selectedCard["todo"], "stops at the last card")

	board, _ = press(t, board, "g")
	board, _ = press(t, board, "k")
	assert.Equal(t, 0, board.selectedCard["todo"])

	card, ok := board.getSelectedCard()
	require.True(t, ok)
	assert.Equal(t, "A", card.ID)
}

func TestBoardModel_MoveCard(t *testing.T) {
	s := createTestStore()
	deps := createTestDeps(s)
	addPoints(t, deps)
	board := loadedBoard(t, deps)

	// Move C, the last card of To Do, to Done
	board, _ = press(t, board, "G")
	board, _ = press(t, board, "m")
	require.True(t, board.moveMode)

	board, cmd := press(t, board, "3")
	require.NotNil(t, cmd)
	msg := cmd()
	done, ok := msg.(moveDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)

	model, cmd := board.Update(msg)
	board = model.(BoardModel)
	assert.False(t, board.moveMode)
	assert.Contains(t, board.statusMsg, "Moved Signup page to Done")
	require.NotNil(t, cmd)

	board = update(t, board, cmd())
	assert.Len(t, board.filteredCards["todo"], 2)
	require.Len(t, board.filteredCards["done"], 1)
	assert.Equal(t, "C", board.filteredCards["done"][0].ID)

	// C no longer contributes to To Do
	badges := board.data.badges["A"]
	require.Len(t, badges, 1)
	assert.Equal(t, "∑ Points: 5", badges[0].Text)
}

func TestBoardModel_MoveWithoutMover(t *testing.T) {
	cards := host.StaticCards([]domain.CardRef{
		{ID: "A", Name: "Summary", ListID: "todo", Pos: 1},
	})
	board := loadedBoard(t, createTestDeps(cards))

	board, _ = press(t, board, "m")

	assert.False(t, board.moveMode)
	assert.Contains(t, board.errorToast, "cannot move")
}

func TestBoardModel_MakeFirst(t *testing.T) {
	deps := createTestDeps(createTestStore())
	addPoints(t, deps)
	board := loadedBoard(t, deps)

	t.Run("already first", func(t *testing.T) {
		board, cmd := press(t, board, "t")
		assert.Nil(t, cmd)
		assert.Contains(t, board.statusMsg, "already the first card")
	})

	// C moves above A and takes over the totals
	board, _ = press(t, board, "G")
	board, cmd := press(t, board, "t")
	require.NotNil(t, cmd)
	msg := cmd()
	done, ok := msg.(moveDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)

	model, cmd := board.Update(msg)
	board = model.(BoardModel)
	assert.Equal(t, "Signup page is now the first card of To Do", board.statusMsg)
	require.NotNil(t, cmd)

	board = update(t, board, cmd())
	require.Len(t, board.filteredCards["todo"], 3)
	assert.Equal(t, "C", board.filteredCards["todo"][0].ID)
	badges := board.data.badges["C"]
	require.Len(t, badges, 2)
	assert.Equal(t, "Points: 3", badges[0].Text)
	assert.Equal(t, "∑ Points: 5", badges[1].Text)
	assert.Empty(t, board.data.badges["A"], "A has no values and no longer carries the totals")
}

func TestBoardModel_MakeFirstWithoutPositioner(t *testing.T) {
	cards := host.StaticCards([]domain.CardRef{
		{ID: "A", Name: "Summary", ListID: "todo", Pos: 1},
		{ID: "B", Name: "Login page", ListID: "todo", Pos: 2},
	})
	board := loadedBoard(t, createTestDeps(cards))

	board, _ = press(t, board, "j")
	board, cmd := press(t, board, "t")

	assert.Nil(t, cmd)
	assert.Contains(t, board.errorToast, "cannot reorder")
}

func TestBoardModel_MoveModeCancel(t *testing.T) {
	board := loadedBoard(t, createTestDeps(createTestStore()))

	board, _ = press(t, board, "m")
	require.True(t, board.moveMode)
	board = update(t, board, tea.KeyMsg{Type: tea.KeyEsc})

	assert.False(t, board.moveMode)
}

func TestBoardModel_EditValues(t *testing.T) {
	t.Run("without fields", func(t *testing.T) {
		board := loadedBoard(t, createTestDeps(createTestStore()))

		model, cmd := board.Update(tea.KeyMsg{Type: tea.KeyEnter})
		board = model.(BoardModel)

		assert.Nil(t, cmd)
		assert.Contains(t, board.errorToast, "No fields")
	})

	t.Run("with fields", func(t *testing.T) {
		deps := createTestDeps(createTestStore())
		addPoints(t, deps)
		board := loadedBoard(t, deps)
		board, _ = press(t, board, "j")

		_, cmd := board.Update(tea.KeyMsg{Type: tea.KeyEnter})
		require.NotNil(t, cmd)

		msg, ok := cmd().(openValuesMsg)
		require.True(t, ok)
		assert.Equal(t, "B", msg.card.ID)
	})
}

func TestBoardModel_OpenSettings(t *testing.T) {
	board := loadedBoard(t, createTestDeps(createTestStore()))

	_, cmd := press(t, board, "s")
	require.NotNil(t, cmd)

	assert.IsType(t, openSettingsMsg{}, cmd())
}

func TestBoardModel_SaveTotals(t *testing.T) {
	deps := createTestDeps(createTestStore())
	field := addPoints(t, deps)
	board := loadedBoard(t, deps)

	board, cmd := press(t, board, "p")
	require.NotNil(t, cmd)
	board = update(t, board, cmd())

	assert.Contains(t, board.statusMsg, "Saved totals of To Do (2 cards)")
	entry, ok, err := deps.PowerUp.CachedSum(context.Background(), deps.Session, "todo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 8.0, entry.Totals[field.ID])
}

func TestBoardModel_RefreshTick(t *testing.T) {
	deps := createTestDeps(createTestStore())
	board := loadedBoard(t, deps)

	model, cmd := board.Update(refreshTickMsg{})
	board = model.(BoardModel)
	require.True(t, board.loading)
	require.NotNil(t, cmd)

	_, cmd = board.Update(refreshTickMsg{})
	assert.Nil(t, cmd, "no second load while one is running")

	addPoints(t, deps)
	board = update(t, board, boardLoadedMsg{data: mustFetch(t, deps)})
	assert.Equal(t, "∑ Points: 8", board.data.badges["A"][0].Text)
}

func mustFetch(t *testing.T, deps Deps) boardData {
	t.Helper()
	data, err := fetchBoard(context.Background(), deps)
	require.NoError(t, err)
	return data
}

func TestBoardModel_View(t *testing.T) {
	deps := createTestDeps(createTestStore())
	addPoints(t, deps)

	board := NewBoardModel(deps, context.Background())
	require.NotPanics(t, func() {
		assert.Contains(t, board.View(), "Loading")
	})

	board = loadedBoard(t, deps)
	view := board.View()

	assert.Contains(t, view, "Sprint 12")
	assert.Contains(t, view, "To Do")
	assert.Contains(t, view, "In Progress")
	assert.Contains(t, view, "Done")
	assert.Contains(t, view, "∑ Points: 8")
	assert.Contains(t, view, "Points: 3")
	assert.Greater(t, len(strings.Split(view, "\n")), 3)
}

func TestBoardModel_ViewNarrow(t *testing.T) {
	board := loadedBoard(t, createTestDeps(createTestStore()))
	board = update(t, board, tea.WindowSizeMsg{Width: 30, Height: 12})

	board, _ = press(t, board, "l")
	board, _ = press(t, board, "l")

	assert.Equal(t, 2, board.columnOffset, "selected list scrolls into view")
	require.NotPanics(t, func() {
		assert.Contains(t, board.View(), "Done")
	})
}

func TestBoardModel_HelpOverlay(t *testing.T) {
	board := loadedBoard(t, createTestDeps(createTestStore()))

	board, _ = press(t, board, "?")
	require.True(t, board.showHelp)
	view := board.View()
	assert.Contains(t, view, "Sum Up keys")
	assert.Contains(t, view, "save list totals")

	board, _ = press(t, board, "?")
	assert.False(t, board.showHelp)
	assert.NotContains(t, board.View(), "Sum Up keys")
}

func TestRenderBadges_Truncation(t *testing.T) {
	deps := createTestDeps(createTestStore())
	addPoints(t, deps)
	board := loadedBoard(t, deps)

	rendered := board.renderBadges("A", 6)

	assert.Contains(t, rendered, "…")
	assert.Empty(t, board.renderBadges("D", 20))
}
