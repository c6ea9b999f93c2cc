package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notifeed/internal/keys"
	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/theme"
)

// BackMsg signals the parent to navigate back to the feed.
type BackMsg struct{}

// Model shows one notification in full.
type Model struct {
	notif    *model.Notification
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && key.Matches(km, m.keys.Back) {
		return m, func() tea.Msg { return BackMsg{} }
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.notif == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notification selected")
	}
	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.notif == nil {
		return ""
	}
	n := m.notif
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(n.Title))

	// Badges line: category + icon + read state
	catBadge := theme.CategoryStyle(n.Category).Render(string(n.Category))
	iconBadge := theme.IconStyle(n.IconKind).Render(theme.Glyph(n.IconKind) + " " + string(n.IconKind))
	readBadge := theme.UnreadBadgeStyle.Render("unread")
	if n.IsRead {
		readBadge = theme.ReadStyle.Render("read")
	}
	sections = append(sections,
		lipgloss.JoinHorizontal(lipgloss.Top, catBadge, "  ", iconBadge, "  ", readBadge),
		"",
	)

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	sections = append(sections, fmt.Sprintf("%s       %s",
		metaStyle.Render("ID:"), valStyle.Render(n.ID)))
	if !n.CreatedAt.IsZero() {
		sections = append(sections, fmt.Sprintf("%s  %s",
			metaStyle.Render("Created:"), valStyle.Render(n.CreatedAt.Local().Format("2006-01-02 15:04"))))
	}
	if n.LinkTarget != "" {
		sections = append(sections, fmt.Sprintf("%s     %s",
			metaStyle.Render("Link:"), valStyle.Render(n.LinkTarget)))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	body := n.Body
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No message")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(m.width-4, 20)).Render(body))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetNotification updates the record being displayed.
func (m *Model) SetNotification(n model.Notification) {
	m.notif = &n
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Refresh re-renders the shown record from a newer copy when the ids
// match, so read state changes show up while the view is open.
func (m *Model) Refresh(records []model.Notification) {
	if m.notif == nil {
		return
	}
	for _, r := range records {
		if r.ID == m.notif.ID && r.Category == m.notif.Category {
			m.notif = &r
			m.viewport.SetContent(m.renderContent())
			return
		}
	}
}

// Current returns the record being displayed.
func (m Model) Current() (model.Notification, bool) {
	if m.notif == nil {
		return model.Notification{}, false
	}
	return *m.notif, true
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	if m.notif != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
