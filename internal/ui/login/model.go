package login

import (
	"fmt"
	"net/url"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notifeed/internal/theme"
)

// SubmittedMsg is dispatched when the user completes the form.
type SubmittedMsg struct {
	BaseURL string
	UserID  string
	Token   string
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	baseURL string
	userID  string
	token   string
}

// Model collects backend credentials.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
	done   bool
	result tea.Msg
}

// New creates a login form prefilled with the current settings.
func New(baseURL, userID string, width, height int) Model {
	m := Model{
		fb:     &formBindings{baseURL: baseURL, userID: userID},
		width:  width,
		height: height,
	}
	m.form = m.buildForm()
	return m
}

// Init starts the embedded form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update forwards input to the form and emits SubmittedMsg or CancelMsg
// once it finishes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		m.SetSize(ws.Width, ws.Height)
	}
	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+c" {
		return m.finish(CancelMsg{})
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.finish(m.submitted())
	case huh.StateAborted:
		return m.finish(CancelMsg{})
	}
	return m, cmd
}

func (m Model) finish(result tea.Msg) (tea.Model, tea.Cmd) {
	m.done = true
	m.result = result
	return m, tea.Quit
}

// Result returns SubmittedMsg or CancelMsg after the program exits, and
// nil while the form is still running.
func (m Model) Result() tea.Msg {
	return m.result
}

// View renders the form.
func (m Model) View() string {
	if m.done {
		return ""
	}
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Connect to notification backend")

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(title + "\n" + m.form.View())
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Placeholder("https://api.example.com").
				Value(&m.fb.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("User ID").
				Value(&m.fb.userID).
				Validate(validateRequired("User ID")),
			huh.NewInput().
				Title("API token").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.token).
				Validate(validateRequired("API token")),
		),
	).WithWidth(m.formWidth())
}

func (m Model) submitted() SubmittedMsg {
	return SubmittedMsg{
		BaseURL: strings.TrimRight(strings.TrimSpace(m.fb.baseURL), "/"),
		UserID:  strings.TrimSpace(m.fb.userID),
		Token:   strings.TrimSpace(m.fb.token),
	}
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("enter an http(s) URL")
	}
	return nil
}
