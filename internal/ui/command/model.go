package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/theme"
)

// Verb names an action the palette can run.
type Verb string

const (
	VerbFilter  Verb = "filter"
	VerbRefresh Verb = "refresh"
	VerbRetry   Verb = "retry"
	VerbReadAll Verb = "readall"
	VerbQuit    Verb = "quit"
)

var aliases = map[string]Verb{
	"filter":  VerbFilter,
	"f":       VerbFilter,
	"refresh": VerbRefresh,
	"sync":    VerbRefresh,
	"retry":   VerbRetry,
	"readall": VerbReadAll,
	"ra":      VerbReadAll,
	"quit":    VerbQuit,
	"q":       VerbQuit,
}

// CommandMsg is emitted when the user executes a valid command.
type CommandMsg struct {
	Verb   Verb
	Filter model.FilterKind
}

// CancelMsg is emitted when the palette is dismissed.
type CancelMsg struct{}

// Parse turns palette input such as "filter unread" into a command.
func Parse(s string) (CommandMsg, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return CommandMsg{}, fmt.Errorf("empty command")
	}
	verb, ok := aliases[fields[0]]
	if !ok {
		return CommandMsg{}, fmt.Errorf("unknown command %q", fields[0])
	}
	cmd := CommandMsg{Verb: verb}
	if verb != VerbFilter {
		if len(fields) > 1 {
			return CommandMsg{}, fmt.Errorf("%s takes no arguments", verb)
		}
		return cmd, nil
	}
	if len(fields) != 2 {
		return CommandMsg{}, fmt.Errorf("usage: filter all|unread|system|social")
	}
	f, err := model.ParseFilterKind(fields[1])
	if err != nil {
		return CommandMsg{}, err
	}
	cmd.Filter = f
	return cmd, nil
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    error
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "filter unread | refresh | retry | readall | quit"
	ti.Prompt = ": "
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "enter":
			cmd, err := Parse(m.input.Value())
			if err != nil {
				m.err = err
				return m, nil
			}
			m.input.Reset()
			m.err = nil
			return m, func() tea.Msg { return cmd }
		case "esc":
			m.input.Reset()
			m.err = nil
			return m, func() tea.Msg { return CancelMsg{} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Command")

	parts := []string{title, m.input.View()}
	if m.err != nil {
		parts = append(parts, theme.ErrorStyle.Render(m.err.Error()))
	}

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
