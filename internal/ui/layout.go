package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the feed, accounting for
// the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// RenderHeader renders the title, the filter tabs and the unread badge.
func (l Layout) RenderHeader(active model.FilterKind, unread int, stale bool) string {
	title := theme.HeaderStyle.Render("notifeed")

	tabs := make([]string, len(model.Filters))
	for i, f := range model.Filters {
		tabs[i] = theme.FilterTabStyle(f == active).
			Background(theme.HeaderStyle.GetBackground()).
			Render(fmt.Sprintf("%d %s", i+1, f))
	}
	tabBar := strings.Join(tabs, "")

	badgeText := fmt.Sprintf("%d unread", unread)
	if stale {
		badgeText += " ~"
	}
	badge := theme.UnreadBadgeStyle.Render(badgeText)

	gap := max(l.Width-
		lipgloss.Width(title)-
		lipgloss.Width(tabBar)-
		lipgloss.Width(badge), 0)

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, title, tabBar, filler, badge)
}

// RenderStatusBar renders the bottom status bar. A non-empty errText
// replaces the hints.
func (l Layout) RenderStatusBar(hints string, errText string) string {
	var rendered string
	if errText != "" {
		rendered = theme.StatusBarStyle.Render(theme.ErrorStyle.
			Background(theme.StatusBarStyle.GetBackground()).
			Render(errText))
	} else {
		rendered = theme.StatusBarStyle.Render(hints)
	}

	gap := max(l.Width-lipgloss.Width(rendered), 0)

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}
