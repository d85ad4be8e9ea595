package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/h0rv/sumup/internal/domain"
	"github.com/h0rv/sumup/internal/settings"
)

// fieldItem wraps a domain.Field for use in bubbles/list.
type fieldItem struct {
	field domain.Field
}

func (i fieldItem) FilterValue() string {
	return i.field.Name
}

func (i fieldItem) Title() string {
	return i.field.Name
}

func (i fieldItem) Description() string {
	if i.field.Created.IsZero() {
		return "Created: unknown"
	}
	return "Created: " + i.field.Created.Local().Format("2006-01-02 15:04")
}

// fieldDelegate is a custom item delegate for field items.
type fieldDelegate struct{}

func (d fieldDelegate) Height() int                             { return 2 }
func (d fieldDelegate) Spacing() int                            { return 1 }
func (d fieldDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d fieldDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(fieldItem)
	if !ok {
		return
	}

	str := fmt.Sprintf("%d. %s", index+1, i.Title())
	desc := i.Description()

	if index == m.Index() {
		fmt.Fprint(w, SelectedItemStyle.Render("> "+str))
		fmt.Fprint(w, "\n  "+NormalItemStyle.Render(desc))
	} else {
		fmt.Fprint(w, NormalItemStyle.Render("  "+str))
		fmt.Fprint(w, "\n  "+lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(desc))
	}
}

// settingsMode is what the settings screen is doing.
type settingsMode int

const (
	modeBrowse settingsMode = iota
	modeAdd
	modeRename
	modeConfirmDelete
)

// fieldsLoadedMsg carries the board's fields after a load or an edit.
type fieldsLoadedMsg struct {
	fields []domain.Field
	status string
	err    error
}

// SettingsModel lists the board's fields and adds, renames and deletes them.
type SettingsModel struct {
	deps Deps
	ctx  context.Context

	list  list.Model
	input textinput.Model

	mode    settingsMode
	target  domain.Field // Field being renamed or deleted
	changed bool         // Whether any edit succeeded
	status  string
	err     error
	width   int
}

// NewSettingsModel creates a new SettingsModel.
func NewSettingsModel(deps Deps, ctx context.Context) SettingsModel {
	l := list.New(nil, fieldDelegate{}, 80, 20)
	l.Title = "Sum Up Fields Settings"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)
	l.Styles.Title = TitleStyle

	ti := textinput.New()
	ti.CharLimit = 64
	ti.Prompt = "> "

	return SettingsModel{
		deps:  deps.withDefaults(),
		ctx:   ctx,
		list:  l,
		input: ti,
		width: 80,
	}
}

// Init loads the fields.
func (m SettingsModel) Init() tea.Cmd {
	return tea.Batch(tea.WindowSize(), m.reload(""))
}

// Update handles messages and updates the model state.
func (m SettingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height - 6)
		return m, nil

	case fieldsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		if msg.status != "" {
			m.changed = true
		}
		m.err = nil
		m.status = msg.status
		items := make([]list.Item, len(msg.fields))
		for i, f := range msg.fields {
			items[i] = fieldItem{field: f}
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case ErrorMsg:
		m.err = msg.Err
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, func() tea.Msg { return QuitMsg{} }
		}
		switch m.mode {
		case modeAdd, modeRename:
			return m.handleInput(msg)
		case modeConfirmDelete:
			return m.handleConfirm(msg)
		}
		return m.handleBrowse(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m SettingsModel) handleBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	switch msg.String() {
	case "q", "esc":
		status := ""
		if m.changed {
			status = "Fields updated"
		}
		return m, func() tea.Msg { return closeScreenMsg{status: status} }
	case "a", "n":
		m.mode = modeAdd
		m.input.Placeholder = "Field name, e.g. Points"
		m.input.SetValue("")
		cmd := m.input.Focus()
		return m, cmd
	case "r", "enter":
		if item, ok := m.list.SelectedItem().(fieldItem); ok {
			m.mode = modeRename
			m.target = item.field
			m.input.Placeholder = item.field.Name
			m.input.SetValue(item.field.Name)
			m.input.CursorEnd()
			cmd := m.input.Focus()
			return m, cmd
		}
		return m, nil
	case "d", "x":
		if item, ok := m.list.SelectedItem().(fieldItem); ok {
			m.mode = modeConfirmDelete
			m.target = item.field
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m SettingsModel) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.input.Blur()
		return m, nil
	case "enter":
		name := strings.TrimSpace(m.input.Value())
		if name == "" {
			m.err = settings.ErrEmptyName
			return m, nil
		}
		mode, target := m.mode, m.target
		m.mode = modeBrowse
		m.input.Blur()
		if mode == modeAdd {
			return m, m.addField(name)
		}
		return m, m.renameField(target, name)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m SettingsModel) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	target := m.target
	m.mode = modeBrowse
	if msg.String() == "y" || msg.String() == "Y" {
		return m, m.deleteField(target)
	}
	return m, nil
}

// View renders the model.
func (m SettingsModel) View() string {
	var b strings.Builder
	if len(m.list.Items()) == 0 {
		b.WriteString(TitleStyle.Render("Sum Up Fields Settings"))
		b.WriteString("\n")
		b.WriteString(NormalItemStyle.Render("No fields yet. Press 'a' to add one."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.list.View())
	}

	switch m.mode {
	case modeAdd:
		b.WriteString("\n" + PromptStyle.Render("New field name:") + "\n" + m.input.View())
	case modeRename:
		b.WriteString("\n" + PromptStyle.Render(fmt.Sprintf("Rename %q to:", m.target.Name)) + "\n" + m.input.View())
	case modeConfirmDelete:
		prompt := fmt.Sprintf("Delete %q? Values stored on cards stay but are no longer summed. (y/N)", m.target.Name)
		b.WriteString("\n" + ErrorStyle.Render(wordwrap.String(prompt, m.width-2)))
	}

	if m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status))
	}
	if m.err != nil {
		b.WriteString("\n" + ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	b.WriteString("\n" + HelpStyle.Render("a:add  r/enter:rename  d:delete  esc:back to board"))
	return b.String()
}

// reload fetches the fields, reporting status on success.
func (m SettingsModel) reload(status string) tea.Cmd {
	ctx, sess := m.ctx, m.deps.Session
	return func() tea.Msg {
		fields, err := settings.Fields(ctx, sess)
		return fieldsLoadedMsg{fields: fields, status: status, err: err}
	}
}

func (m SettingsModel) addField(name string) tea.Cmd {
	ctx, sess := m.ctx, m.deps.Session
	return func() tea.Msg {
		field, err := settings.AddField(ctx, sess, name)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		fields, err := settings.Fields(ctx, sess)
		return fieldsLoadedMsg{fields: fields, status: fmt.Sprintf("Added %s", field.Name), err: err}
	}
}

func (m SettingsModel) renameField(target domain.Field, name string) tea.Cmd {
	ctx, sess := m.ctx, m.deps.Session
	return func() tea.Msg {
		field, err := settings.RenameField(ctx, sess, target.ID, name)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		fields, err := settings.Fields(ctx, sess)
		return fieldsLoadedMsg{fields: fields, status: fmt.Sprintf("Renamed %s to %s", target.Name, field.Name), err: err}
	}
}

func (m SettingsModel) deleteField(target domain.Field) tea.Cmd {
	ctx, sess := m.ctx, m.deps.Session
	return func() tea.Msg {
		if err := settings.DeleteField(ctx, sess, target.ID); err != nil {
			return ErrorMsg{Err: err}
		}
		fields, err := settings.Fields(ctx, sess)
		return fieldsLoadedMsg{fields: fields, status: fmt.Sprintf("Deleted %s", target.Name), err: err}
	}
}
