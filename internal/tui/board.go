package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/pkg/browser"
	"go.uber.org/zap"

	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/host"
	"github.com/h0rv/sumup/internal/settings"
)

// Layout constants
const (
	minColumnWidth = 24
	maxColumnWidth = 40
	headerLines    = 2  // Title line + hints line
	cardLines      = 2  // Card name + badge line
	pageJumpSize   = 10 // Number of cards to jump with Ctrl+D/U
)

// errNoCardSource is shown when the board was started without cards.
var errNoCardSource = errors.New("no card source configured")

// Styles for the board view - base styles without width/height (set dynamically)
var (
	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	cardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	moveModeStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("205")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)
)

// boardData is one snapshot of the board with its rendered badges.
type boardData struct {
	lists  []domain.List
	cards  map[string][]domain.CardRef // ListID -> cards ordered by position
	badges map[string][]domain.Badge   // CardID -> badges
	fields []domain.Field
}

// Message types
type (
	boardLoadedMsg struct {
		data boardData
		err  error
	}
	moveDoneMsg struct {
		card  domain.CardRef
		list  domain.List
		first bool // Placed at the top of the list rather than moved
		err   error
	}
	totalsSavedMsg struct {
		list  domain.List
		entry domain.CachedSum
		err   error
	}
)

// BoardModel represents the kanban board with value and total badges
type BoardModel struct {
	// Dependencies
	deps Deps
	ctx  context.Context

	// UI components
	keymap      KeyMap
	help        HelpModel
	spinner     spinner.Model
	filterInput textinput.Model

	// Board state
	data           boardData
	filteredCards  map[string][]domain.CardRef // ListID -> visible cards
	selectedColumn int                         // Currently selected list
	columnOffset   int                         // First visible list index
	selectedCard   map[string]int              // ListID -> selected card index
	scrollOffset   map[string]int              // ListID -> first visible card index

	// View state
	width      int
	height     int
	showHelp   bool
	filterMode bool
	filterText string
	moveMode   bool
	loading    bool
	loaded     bool
	updatedAt  time.Time
	errorToast string
	statusMsg  string
}

// NewBoardModel creates a new board model
func NewBoardModel(deps Deps, ctx context.Context) BoardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "Filter..."
	ti.Prompt = "/ "

	keymap := DefaultKeyMap()
	return BoardModel{
		deps:          deps.withDefaults(),
		ctx:           ctx,
		keymap:        keymap,
		help:          NewHelpModel(keymap),
		spinner:       sp,
		filterInput:   ti,
		filteredCards: make(map[string][]domain.CardRef),
		selectedCard:  make(map[string]int),
		scrollOffset:  make(map[string]int),
		loading:       true,
	}
}

// Init starts the spinner and the first load
func (m BoardModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tea.WindowSize(),
		m.load(),
	)
}

// Update handles messages
func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		(&m).adjustColumnScroll()
		return m, nil

	case boardLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errorToast = fmt.Sprintf("Load failed: %v", msg.err)
			return m, nil
		}
		m.loaded = true
		m.errorToast = ""
		m.updatedAt = time.Now()
		m.data = msg.data
		(&m).applyFilter()
		return m, nil

	case refreshTickMsg:
		if m.loading || m.moveMode {
			return m, nil
		}
		m.loading = true
		return m, m.load()

	case moveDoneMsg:
		m.moveMode = false
		if msg.err != nil {
			m.errorToast = fmt.Sprintf("Move failed: %v", msg.err)
		} else if msg.first {
			m.statusMsg = fmt.Sprintf("%s is now the first card of %s", msg.card.Name, msg.list.Name)
		} else {
			m.statusMsg = fmt.Sprintf("Moved %s to %s", msg.card.Name, msg.list.Name)
		}
		m.loading = true
		return m, m.load()

	case totalsSavedMsg:
		if msg.err != nil {
			m.errorToast = fmt.Sprintf("Saving totals failed: %v", msg.err)
			return m, nil
		}
		m.statusMsg = fmt.Sprintf("Saved totals of %s (%d cards)", msg.list.Name, msg.entry.Cards)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

// handleKeyPress processes keyboard input
func (m BoardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, func() tea.Msg { return QuitMsg{} }
	}

	// Help overlay
	if m.showHelp {
		if msg.String() == "?" || msg.String() == "q" || msg.String() == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	// Filter mode
	if m.filterMode {
		switch {
		case key.Matches(msg, m.keymap.ApplyFilter):
			m.filterMode = false
			m.filterText = m.filterInput.Value()
			(&m).applyFilter()
			return m, nil
		case key.Matches(msg, m.keymap.CancelFilter):
			m.filterMode = false
			m.filterInput.SetValue(m.filterText)
			return m, nil
		default:
			var cmd tea.Cmd
			m.filterInput, cmd = m.filterInput.Update(msg)
			return m, cmd
		}
	}

	// Move mode
	if m.moveMode {
		return m.handleMoveMode(msg)
	}

	m.errorToast = ""
	m.statusMsg = ""

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m, func() tea.Msg { return QuitMsg{} }
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
	case key.Matches(msg, m.keymap.Filter):
		m.filterMode = true
		m.filterInput.Focus()
	case key.Matches(msg, m.keymap.Left):
		if m.selectedColumn > 0 {
			m.selectedColumn--
			(&m).adjustColumnScroll()
		}
	case key.Matches(msg, m.keymap.Right):
		if m.selectedColumn < len(m.data.lists)-1 {
			m.selectedColumn++
			(&m).adjustColumnScroll()
		}
	case key.Matches(msg, m.keymap.Down):
		(&m).moveCardSelection(1)
	case key.Matches(msg, m.keymap.Up):
		(&m).moveCardSelection(-1)
	case key.Matches(msg, m.keymap.Top):
		(&m).jumpToCard(0)
	case key.Matches(msg, m.keymap.Bottom):
		(&m).jumpToCard(-1)
	case msg.String() == "ctrl+d":
		(&m).moveCardSelection(pageJumpSize)
	case msg.String() == "ctrl+u":
		(&m).moveCardSelection(-pageJumpSize)
	case key.Matches(msg, m.keymap.Move):
		if _, ok := m.getSelectedCard(); !ok {
			return m, nil
		}
		if _, ok := m.deps.Session.Cards.(host.Mover); !ok {
			m.errorToast = "This board cannot move cards"
			return m, nil
		}
		m.moveMode = true
	case key.Matches(msg, m.keymap.MakeFirst):
		return m.makeFirst()
	case key.Matches(msg, m.keymap.Open):
		card, ok := m.getSelectedCard()
		if ok && card.URL != "" {
			if err := browser.OpenURL(card.URL); err != nil {
				m.errorToast = fmt.Sprintf("Open failed: %v", err)
			}
		}
	case key.Matches(msg, m.keymap.Refresh):
		m.loading = true
		return m, m.load()
	case key.Matches(msg, m.keymap.SaveTotals):
		if list, ok := m.getSelectedList(); ok {
			return m, m.saveTotals(list)
		}
	case key.Matches(msg, m.keymap.Settings):
		return m, func() tea.Msg { return openSettingsMsg{} }
	case key.Matches(msg, m.keymap.EditValues):
		card, ok := m.getSelectedCard()
		if !ok {
			return m, nil
		}
		if len(m.data.fields) == 0 {
			m.errorToast = "No fields yet, press s to add one"
			return m, nil
		}
		return m, func() tea.Msg { return openValuesMsg{card: card} }
	}

	return m, nil
}

// handleMoveMode handles key presses in move mode
func (m BoardModel) handleMoveMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.moveMode = false
		return m, nil
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(msg.Runes[0] - '1')
		if idx >= 0 && idx < len(m.data.lists) {
			return m, m.moveCardToList(m.data.lists[idx])
		}
	}
	return m, nil
}

// View renders the board - fills entire terminal exactly
func (m BoardModel) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	var sections []string
	sections = append(sections, m.renderHeader(width))
	sections = append(sections, m.renderSecondHeader(width))

	if m.filterMode {
		sections = append(sections, m.filterInput.View())
	}
	if m.moveMode {
		moveBar := moveModeStyle.Render("MOVE") + " Press 1-9 to select list, ESC to cancel"
		sections = append(sections, moveBar)
	}

	boardHeight := height - headerLines
	if m.filterMode {
		boardHeight--
	}
	if m.moveMode {
		boardHeight--
	}
	if boardHeight < 5 {
		boardHeight = 5
	}

	var mainContent string
	switch {
	case m.showHelp:
		helpLines := strings.Split(m.help.View(width), "\n")
		if len(helpLines) > boardHeight {
			helpLines = helpLines[:boardHeight]
		}
		mainContent = strings.Join(helpLines, "\n")
	case m.loading && !m.loaded:
		loadingMsg := m.spinner.View() + " Loading..."
		mainContent = lipgloss.Place(width, boardHeight, lipgloss.Center, lipgloss.Center, loadingMsg)
	case len(m.data.lists) == 0:
		emptyMsg := "No lists on this board. Press 'r' to refresh."
		mainContent = lipgloss.Place(width, boardHeight, lipgloss.Center, lipgloss.Center, emptyMsg)
	default:
		mainContent = m.renderBoard(width, boardHeight)
	}
	sections = append(sections, mainContent)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the title on the left and board status on the right
func (m BoardModel) renderHeader(width int) string {
	title := m.deps.Title
	if title == "" {
		title = m.deps.Session.Context.Board
	}

	var statusParts []string
	if m.loading && m.loaded {
		statusParts = append(statusParts, m.spinner.View()+"refreshing")
	}
	statusParts = append(statusParts, fmt.Sprintf("%d fields", len(m.data.fields)))

	total := 0
	for _, cards := range m.filteredCards {
		total += len(cards)
	}
	statusParts = append(statusParts, fmt.Sprintf("%d cards", total))

	if m.filterText != "" {
		statusParts = append(statusParts, "/"+m.filterText)
	}
	if !m.updatedAt.IsZero() {
		statusParts = append(statusParts, m.updatedAt.Format("15:04:05"))
	}
	statusParts = append(statusParts, "[s]fields [?]help")
	status := strings.Join(statusParts, " | ")

	padding := width - lipgloss.Width(title) - lipgloss.Width(status) - 2
	if padding < 1 {
		padding = 1
	}
	return titleStyle.Render(title) + strings.Repeat(" ", padding) + dimStyle.Render(status)
}

// renderSecondHeader renders navigation hints and a toast or position info
func (m BoardModel) renderSecondHeader(width int) string {
	right := ""
	switch {
	case m.errorToast != "":
		right = errorStyle.Render(m.errorToast)
	case m.statusMsg != "":
		right = statusStyle.Render(m.statusMsg)
	case len(m.data.lists) > 0:
		list := m.data.lists[m.selectedColumn]
		cards := m.filteredCards[list.ID]
		right = fmt.Sprintf("list %d/%d", m.selectedColumn+1, len(m.data.lists))
		if len(cards) > 0 {
			right = fmt.Sprintf("%s | card %d/%d", right, m.selectedCard[list.ID]+1, len(cards))
		}
	}

	left := m.help.ShortView(width - lipgloss.Width(right) - 2)
	padding := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + right
}

// renderBoard renders the lists within the given dimensions, scrolling
// horizontally when they overflow
func (m BoardModel) renderBoard(totalWidth, totalHeight int) string {
	numCols := len(m.data.lists)
	if numCols == 0 {
		return ""
	}

	// lipgloss Border adds 2 lines to the content height
	colContentHeight := totalHeight - 2
	if colContentHeight < 3 {
		colContentHeight = 3
	}

	visibleCols := m.visibleColumns(totalWidth)

	colWidth := totalWidth / visibleCols
	if colWidth > maxColumnWidth {
		colWidth = maxColumnWidth
	}
	if colWidth < minColumnWidth {
		colWidth = minColumnWidth
	}

	// 2 border + 2 padding
	innerWidth := colWidth - 4

	startCol := m.columnOffset
	endCol := startCol + visibleCols
	if endCol > numCols {
		endCol = numCols
		startCol = endCol - visibleCols
		if startCol < 0 {
			startCol = 0
		}
	}

	columnViews := make([]string, 0, visibleCols+2)

	if startCol > 0 {
		columnViews = append(columnViews, scrollIndicator("◀", colContentHeight+2))
	}
	for i := startCol; i < endCol; i++ {
		columnViews = append(columnViews, m.renderColumn(m.data.lists[i], i == m.selectedColumn, colWidth, colContentHeight, innerWidth, i+1))
	}
	if endCol < numCols {
		columnViews = append(columnViews, scrollIndicator("▶", colContentHeight+2))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, columnViews...)
}

func scrollIndicator(arrow string, height int) string {
	return lipgloss.NewStyle().
		Width(2).
		Height(height).
		Foreground(lipgloss.Color("205")).
		Align(lipgloss.Center, lipgloss.Center).
		Render(arrow)
}

// renderColumn renders a single list. innerHeight is the content height
// inside the border.
func (m BoardModel) renderColumn(list domain.List, selected bool, width, innerHeight, innerWidth, colNum int) string {
	cards := m.filteredCards[list.ID]

	headerText := fmt.Sprintf("[%d] %s (%d)", colNum, list.Name, len(cards))
	headerText = truncate.StringWithTail(headerText, uint(innerWidth), "…")

	scrollOffset := m.scrollOffset[list.ID]
	selectedIdx := m.selectedCard[list.ID]

	// Header takes one line, each indicator another
	slots := (innerHeight - 1) / cardLines
	needUp := scrollOffset > 0
	if needUp {
		slots = (innerHeight - 2) / cardLines
	}
	endIdx := scrollOffset + slots
	needDown := endIdx < len(cards)
	if needDown {
		reserved := 2
		if needUp {
			reserved = 3
		}
		slots = (innerHeight - reserved) / cardLines
		endIdx = scrollOffset + slots
	}
	if slots < 1 {
		endIdx = scrollOffset + 1
	}
	if endIdx > len(cards) {
		endIdx = len(cards)
	}

	lines := []string{columnHeaderStyle.Render(headerText)}

	if needUp {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("↑ %d more", scrollOffset)))
	}

	for i := scrollOffset; i < endIdx; i++ {
		card := cards[i]
		name := truncate.StringWithTail(card.Name, uint(innerWidth-2), "…")
		if selected && i == selectedIdx {
			lines = append(lines, selectedCardStyle.Render("> "+name))
		} else {
			lines = append(lines, cardStyle.Render("  "+name))
		}
		lines = append(lines, "  "+m.renderBadges(card.ID, innerWidth-2))
	}

	if remaining := len(cards) - endIdx; needDown && remaining > 0 {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("↓ %d more", remaining)))
	}

	if len(cards) == 0 {
		lines = append(lines, dimStyle.Render("(empty)"))
	}

	borderColor := lipgloss.Color("240")
	if selected {
		borderColor = lipgloss.Color("205")
	}

	// Width includes border (2) + padding (2). Height is the content height;
	// MaxHeight would truncate the border.
	colStyle := lipgloss.NewStyle().
		Width(width - 2).
		Height(innerHeight).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor)

	return colStyle.Render(strings.Join(lines, "\n"))
}

// renderBadges renders a card's badges on one line, sums first.
func (m BoardModel) renderBadges(cardID string, maxWidth int) string {
	badges := m.data.badges[cardID]
	if len(badges) == 0 {
		return ""
	}
	parts := make([]string, 0, len(badges))
	for _, b := range badges {
		if b.Kind == domain.BadgeSum {
			parts = append(parts, BadgeStyle(b.Color).Render("["+b.Text+"]"))
		}
	}
	for _, b := range badges {
		if b.Kind != domain.BadgeSum {
			parts = append(parts, BadgeStyle(b.Color).Render(b.Text))
		}
	}
	return truncate.StringWithTail(strings.Join(parts, " "), uint(maxWidth), "…")
}

// applyFilter filters cards by name and clamps the selection
func (m *BoardModel) applyFilter() {
	m.filteredCards = make(map[string][]domain.CardRef, len(m.data.lists))
	needle := strings.ToLower(m.filterText)

	for _, list := range m.data.lists {
		filtered := make([]domain.CardRef, 0, len(m.data.cards[list.ID]))
		for _, card := range m.data.cards[list.ID] {
			if needle != "" && !strings.Contains(strings.ToLower(card.Name), needle) {
				continue
			}
			filtered = append(filtered, card)
		}
		m.filteredCards[list.ID] = filtered
	}

	if m.selectedColumn >= len(m.data.lists) {
		m.selectedColumn = 0
	}

	for listID, cards := range m.filteredCards {
		m.scrollOffset[listID] = 0
		if m.selectedCard[listID] >= len(cards) {
			if len(cards) > 0 {
				m.selectedCard[listID] = len(cards) - 1
			} else {
				m.selectedCard[listID] = 0
			}
		}
		m.adjustScroll(listID)
	}
}

// moveCardSelection moves the card selection up or down by delta
func (m *BoardModel) moveCardSelection(delta int) {
	list, ok := m.getSelectedList()
	if !ok {
		return
	}
	cards := m.filteredCards[list.ID]
	if len(cards) == 0 {
		return
	}

	newIdx := m.selectedCard[list.ID] + delta
	if newIdx < 0 {
		newIdx = 0
	}
	if newIdx >= len(cards) {
		newIdx = len(cards) - 1
	}

	m.selectedCard[list.ID] = newIdx
	m.adjustScroll(list.ID)
}

// jumpToCard jumps to a specific card index. Use -1 to jump to last card.
func (m *BoardModel) jumpToCard(idx int) {
	list, ok := m.getSelectedList()
	if !ok {
		return
	}
	cards := m.filteredCards[list.ID]
	if len(cards) == 0 {
		return
	}

	if idx < 0 || idx >= len(cards) {
		idx = len(cards) - 1
	}

	m.selectedCard[list.ID] = idx
	m.adjustScroll(list.ID)
}

// adjustScroll ensures the selected card is visible
func (m *BoardModel) adjustScroll(listID string) {
	selectedIdx := m.selectedCard[listID]
	scrollOffset := m.scrollOffset[listID]

	contentHeight := m.height - headerLines - 2 // 2 for column borders
	if m.moveMode {
		contentHeight--
	}
	if m.filterMode {
		contentHeight--
	}
	// Header and both scroll indicators
	visibleCards := (contentHeight - 3) / cardLines
	if visibleCards < 1 {
		visibleCards = 1
	}

	if selectedIdx < scrollOffset {
		m.scrollOffset[listID] = selectedIdx
	}
	if selectedIdx >= scrollOffset+visibleCards {
		m.scrollOffset[listID] = selectedIdx - visibleCards + 1
	}
}

// visibleColumns returns how many lists fit in width.
func (m BoardModel) visibleColumns(width int) int {
	visible := width / minColumnWidth
	if visible < 1 {
		visible = 1
	}
	if visible > len(m.data.lists) {
		visible = len(m.data.lists)
	}
	return visible
}

// adjustColumnScroll ensures the selected list is visible
func (m *BoardModel) adjustColumnScroll() {
	if len(m.data.lists) == 0 || m.width == 0 {
		return
	}
	visibleCols := m.visibleColumns(m.width)

	if m.selectedColumn < m.columnOffset {
		m.columnOffset = m.selectedColumn
	}
	if m.selectedColumn >= m.columnOffset+visibleCols {
		m.columnOffset = m.selectedColumn - visibleCols + 1
	}
}

// getSelectedList returns the currently selected list
func (m BoardModel) getSelectedList() (domain.List, bool) {
	if len(m.data.lists) == 0 || m.selectedColumn >= len(m.data.lists) {
		return domain.List{}, false
	}
	return m.data.lists[m.selectedColumn], true
}

// getSelectedCard returns the currently selected card
func (m BoardModel) getSelectedCard() (domain.CardRef, bool) {
	list, ok := m.getSelectedList()
	if !ok {
		return domain.CardRef{}, false
	}
	cards := m.filteredCards[list.ID]
	if len(cards) == 0 {
		return domain.CardRef{}, false
	}

	idx := m.selectedCard[list.ID]
	if idx >= len(cards) {
		idx = 0
	}
	return cards[idx], true
}

// moveCardToList moves the selected card to the end of a list. Sources that
// talk to a remote service update their snapshot optimistically and roll it
// back themselves when the remote write fails.
func (m BoardModel) moveCardToList(target domain.List) tea.Cmd {
	card, ok := m.getSelectedCard()
	if !ok {
		return nil
	}
	mover, ok := m.deps.Session.Cards.(host.Mover)
	if !ok {
		return nil
	}
	ctx := m.ctx
	logger := m.deps.Logger

	return func() tea.Msg {
		err := mover.MoveCard(ctx, card.ID, target.ID)
		if err != nil {
			logger.Warn("Move failed", zap.String("card", card.ID), zap.String("list", target.ID), zap.Error(err))
		}
		return moveDoneMsg{card: card, list: target, err: err}
	}
}

// makeFirst places the selected card above the first card of its list, so it
// carries the list totals.
func (m BoardModel) makeFirst() (tea.Model, tea.Cmd) {
	card, ok := m.getSelectedCard()
	if !ok {
		return m, nil
	}
	list, _ := m.getSelectedList()
	positioner, ok := m.deps.Session.Cards.(host.Positioner)
	if !ok {
		m.errorToast = "This board cannot reorder cards"
		return m, nil
	}
	first, _ := domain.FirstCard(m.data.cards[list.ID])
	if first.ID == card.ID {
		m.statusMsg = fmt.Sprintf("%s is already the first card", card.Name)
		return m, nil
	}
	pos := first.Pos / 2
	if first.Pos <= 0 {
		pos = first.Pos - 1
	}

	ctx := m.ctx
	logger := m.deps.Logger
	return m, func() tea.Msg {
		err := positioner.SetPosition(ctx, card.ID, list.ID, pos)
		if err != nil {
			logger.Warn("Reorder failed", zap.String("card", card.ID), zap.Error(err))
		}
		return moveDoneMsg{card: card, list: list, first: true, err: err}
	}
}

// saveTotals recomputes a list's totals and stores them in the sum cache
func (m BoardModel) saveTotals(list domain.List) tea.Cmd {
	ctx := m.ctx
	deps := m.deps
	return func() tea.Msg {
		entry, err := deps.PowerUp.RefreshCache(ctx, deps.Session.ForList(list.ID), list.ID)
		return totalsSavedMsg{list: list, entry: entry, err: err}
	}
}

// load fetches a fresh snapshot of the board
func (m BoardModel) load() tea.Cmd {
	ctx := m.ctx
	deps := m.deps
	return func() tea.Msg {
		data, err := fetchBoard(ctx, deps)
		return boardLoadedMsg{data: data, err: err}
	}
}

// fetchBoard reads lists, cards and fields and renders every card's badges.
func fetchBoard(ctx context.Context, deps Deps) (boardData, error) {
	sess := deps.Session
	if sess.Cards == nil {
		return boardData{}, errNoCardSource
	}
	boardID := sess.Context.Board

	lists, err := sess.Cards.Lists(ctx, boardID)
	if err != nil {
		return boardData{}, fmt.Errorf("failed to load lists: %w", err)
	}
	fields, err := settings.Fields(ctx, sess)
	if err != nil {
		return boardData{}, err
	}

	data := boardData{
		lists:  domain.SortLists(lists),
		cards:  make(map[string][]domain.CardRef, len(lists)),
		badges: make(map[string][]domain.Badge),
		fields: fields,
	}
	for _, list := range data.lists {
		cards, err := sess.Cards.Cards(ctx, boardID, list.ID)
		if err != nil {
			return boardData{}, fmt.Errorf("failed to load cards of %s: %w", list.Name, err)
		}
		data.cards[list.ID] = domain.SortByPos(domain.FilterList(cards, list.ID))
	}

	if len(fields) == 0 {
		return data, nil
	}
	for _, list := range data.lists {
		for _, card := range data.cards[list.ID] {
			data.badges[card.ID] = deps.PowerUp.CardBadges(ctx, sess, card.ID)
		}
	}
	return data, nil
}
