package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notifeed/internal/keys"
	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/theme"
)

var legend = []model.IconKind{
	model.IconInfo, model.IconWarning, model.IconAlert,
	model.IconLike, model.IconComment, model.IconFollow, model.IconMention,
}

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// View renders the key bindings and the icon legend.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Keyboard Shortcuts")

	var icons []string
	for _, k := range legend {
		icons = append(icons, theme.IconStyle(k).Render(theme.Glyph(k))+" "+string(k))
	}
	iconLine := lipgloss.NewStyle().MarginTop(1).Render(strings.Join(icons, "   "))

	hint := theme.HelpStyle.Render("A ~ next to the unread count means a refresh is pending.")

	content := lipgloss.JoinVertical(lipgloss.Left, title, m.help.View(m.keys), iconLine, hint)

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
