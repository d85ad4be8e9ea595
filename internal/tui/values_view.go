package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/browser"

	"github.com/h0rv/sumup/internal/aggregate"
	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/settings"
)

// Values editor styles
var (
	valuesTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	valuesLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	focusedLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")).
				Padding(0, 1)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")).
			Bold(true)
)

type (
	valuesLoadedMsg struct {
		fields []domain.Field
		values domain.ValueMap
		err    error
	}
	valuesSavedMsg struct {
		err error
	}
)

// ValuesModel edits the field values of one card, one input per field.
type ValuesModel struct {
	deps Deps
	ctx  context.Context
	card domain.CardRef

	spinner spinner.Model
	inputs  []textinput.Model
	fields  []domain.Field
	stored  domain.ValueMap // Values as loaded, including fields that no longer exist
	focus   int

	loading     bool
	saving      bool
	confirmExit bool // Show "unsaved changes" prompt
	errorMsg    string

	width  int
	height int
}

// NewValuesModel creates the values editor for a card.
func NewValuesModel(deps Deps, ctx context.Context, card domain.CardRef) ValuesModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return ValuesModel{
		deps:    deps.withDefaults(),
		ctx:     ctx,
		card:    card,
		spinner: sp,
		loading: true,
		width:   80,
	}
}

// Init loads the fields and the card's values.
func (m ValuesModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.WindowSize(), m.load())
}

// Update handles messages
func (m ValuesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for i := range m.inputs {
			m.inputs[i].Width = m.inputWidth()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case valuesLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errorMsg = fmt.Sprintf("Load failed: %v", msg.err)
			return m, nil
		}
		m.fields = msg.fields
		m.stored = msg.values
		m.inputs = make([]textinput.Model, len(msg.fields))
		for i, f := range msg.fields {
			ti := textinput.New()
			ti.Prompt = ""
			ti.Placeholder = "0"
			ti.CharLimit = 32
			ti.Width = m.inputWidth()
			if v, ok := msg.values[f.ID]; ok {
				ti.SetValue(rawValue(v))
			}
			m.inputs[i] = ti
		}
		m.focus = 0
		if len(m.inputs) > 0 {
			cmd := m.inputs[0].Focus()
			return m, cmd
		}
		return m, nil

	case valuesSavedMsg:
		m.saving = false
		if msg.err != nil {
			m.errorMsg = fmt.Sprintf("Save failed: %v", msg.err)
			return m, nil
		}
		status := fmt.Sprintf("Saved values of %s", m.card.Name)
		return m, func() tea.Msg { return closeScreenMsg{status: status} }

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	if len(m.inputs) > 0 {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m ValuesModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, func() tea.Msg { return QuitMsg{} }
	}
	if m.loading || m.saving {
		return m, nil
	}

	if m.confirmExit {
		switch msg.String() {
		case "y", "Y":
			m.confirmExit = false
			return m, func() tea.Msg { return closeScreenMsg{} }
		case "n", "N", "esc":
			m.confirmExit = false
			return m, nil
		case "s", "S":
			m.confirmExit = false
			return m.save()
		}
		return m, nil
	}

	m.errorMsg = ""
	switch msg.String() {
	case "esc":
		if m.dirty() {
			m.confirmExit = true
			return m, nil
		}
		return m, func() tea.Msg { return closeScreenMsg{} }
	case "ctrl+s":
		return m.save()
	case "ctrl+o":
		if m.card.URL != "" {
			_ = browser.OpenURL(m.card.URL)
		}
		return m, nil
	case "tab", "down":
		cmd := m.setFocus(m.focus + 1)
		return m, cmd
	case "shift+tab", "up":
		cmd := m.setFocus(m.focus - 1)
		return m, cmd
	case "enter":
		if m.focus >= len(m.inputs)-1 {
			return m.save()
		}
		cmd := m.setFocus(m.focus + 1)
		return m, cmd
	}

	if len(m.inputs) == 0 {
		return m, nil
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// setFocus moves the cursor to input i, wrapping around.
func (m *ValuesModel) setFocus(i int) tea.Cmd {
	if len(m.inputs) == 0 {
		return nil
	}
	m.inputs[m.focus].Blur()
	m.focus = (i + len(m.inputs)) % len(m.inputs)
	return m.inputs[m.focus].Focus()
}

// View renders the editor
func (m ValuesModel) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}
	innerWidth := width - 4

	var lines []string
	title := wordwrap.String("Edit Sum Up values: "+m.card.Name, innerWidth)
	lines = append(lines, valuesTitleStyle.Render(title), "")

	switch {
	case m.loading:
		lines = append(lines, m.spinner.View()+" Loading...")
	case len(m.fields) == 0 && m.errorMsg == "":
		lines = append(lines, dimStyle.Render("This board has no fields. Add one from the settings screen."))
	default:
		for i, f := range m.fields {
			label := valuesLabelStyle
			if i == m.focus {
				label = focusedLabelStyle
			}
			lines = append(lines, label.Render(f.Name))
			lines = append(lines, m.inputs[i].View())
			if v := strings.TrimSpace(m.inputs[i].Value()); v != "" && !aggregate.IsNumeric(v) {
				lines = append(lines, warningStyle.Render("Not a number, counts as 0"))
			}
			lines = append(lines, "")
		}
	}

	if m.saving {
		lines = append(lines, m.spinner.View()+" Saving...")
	}
	if m.errorMsg != "" {
		lines = append(lines, ErrorStyle.Render(wordwrap.String(m.errorMsg, innerWidth)))
	}

	panel := panelBorderStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left, panel, m.renderFooter())
}

func (m ValuesModel) renderFooter() string {
	if m.confirmExit {
		return warningStyle.Render("Unsaved values! [Y]discard [N]cancel [S]save and exit")
	}
	return dimStyle.Render("[tab/↓]next [shift+tab/↑]previous [enter/ctrl+s]save [ctrl+o]open card [esc]back")
}

func (m ValuesModel) inputWidth() int {
	w := m.width - 8
	if w < 10 {
		w = 10
	}
	return w
}

// edited returns the stored values with the inputs applied. Values of fields
// that were deleted from the board are kept.
func (m ValuesModel) edited() domain.ValueMap {
	values := make(domain.ValueMap, len(m.stored)+len(m.fields))
	for id, v := range m.stored {
		values[id] = v
	}
	for i, f := range m.fields {
		v := strings.TrimSpace(m.inputs[i].Value())
		if v == "" {
			delete(values, f.ID)
			continue
		}
		values[f.ID] = v
	}
	return values
}

// dirty reports whether any input differs from the stored value.
func (m ValuesModel) dirty() bool {
	for i, f := range m.fields {
		stored := ""
		if v, ok := m.stored[f.ID]; ok {
			stored = rawValue(v)
		}
		if strings.TrimSpace(m.inputs[i].Value()) != stored {
			return true
		}
	}
	return false
}

func (m ValuesModel) save() (tea.Model, tea.Cmd) {
	if len(m.fields) == 0 {
		return m, nil
	}
	m.saving = true
	ctx, sess, cardID, values := m.ctx, m.deps.Session, m.card.ID, m.edited()
	return m, func() tea.Msg {
		_, err := settings.SetValues(ctx, sess, cardID, values)
		return valuesSavedMsg{err: err}
	}
}

func (m ValuesModel) load() tea.Cmd {
	ctx, sess, cardID := m.ctx, m.deps.Session, m.card.ID
	return func() tea.Msg {
		fields, err := settings.Fields(ctx, sess)
		if err != nil {
			return valuesLoadedMsg{err: err}
		}
		values, err := settings.Values(ctx, sess, cardID)
		if err != nil {
			return valuesLoadedMsg{err: err}
		}
		return valuesLoadedMsg{fields: fields, values: values}
	}
}

// rawValue renders a stored value the way the user typed it.
func rawValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return aggregate.FormatNumber(aggregate.ParseValue(v))
}
