package feedlist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/theme"
)

// Item wraps a notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// ItemDelegate renders one notification per line.
type ItemDelegate struct {
	// now is overridable for rendering tests.
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single feed row.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	fmt.Fprint(w, d.renderLine(it.Notification, index == m.Index()))
}

func (d ItemDelegate) renderLine(n model.Notification, selected bool) string {
	now := time.Now
	if d.now != nil {
		now = d.now
	}

	dot := " "
	if !n.IsRead {
		dot = lipgloss.NewStyle().Foreground(theme.ColorRed).Render("●")
	}

	icon := theme.IconStyle(n.IconKind).Render(theme.Glyph(n.IconKind))
	cat := theme.CategoryStyle(n.Category).Render(categoryLabel(n.Category))

	text := n.Title
	if n.Body != "" {
		text += ": " + n.Body
	}
	if n.IsRead {
		text = theme.ReadStyle.Render(text)
	}

	when := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(now(), n.CreatedAt))

	line := fmt.Sprintf("%s %s %s %s  %s", dot, icon, cat, text, when)

	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

func categoryLabel(c model.Category) string {
	switch c {
	case model.CategorySystem:
		return "SYS"
	case model.CategorySocial:
		return "SOC"
	default:
		return "???"
	}
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
