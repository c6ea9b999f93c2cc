package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notifeed/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the application title bar.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps overlay content such as help and the login form.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for feed rows.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the focused feed row.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// ReadStyle dims records that have been read.
var ReadStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// HelpStyle is used for keyboard hints.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle renders failures in the status bar.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// UnreadBadgeStyle renders the unread count in the header.
var UnreadBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorRed).
	Padding(0, 1)

// FilterTabStyle returns the header tab style for a filter.
func FilterTabStyle(active bool) lipgloss.Style {
	base := lipgloss.NewStyle().Padding(0, 1)
	if active {
		return base.Bold(true).Underline(true).Foreground(ColorWhite)
	}
	return base.Foreground(ColorSubtle)
}

// CategoryStyle returns a color-coded style for a category badge.
func CategoryStyle(c model.Category) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch c {
	case model.CategorySystem:
		return base.Foreground(ColorBlue)
	case model.CategorySocial:
		return base.Foreground(ColorMagenta)
	default:
		return base.Foreground(ColorGray)
	}
}

// IconStyle returns the color for an icon kind.
func IconStyle(k model.IconKind) lipgloss.Style {
	base := lipgloss.NewStyle()

	switch k {
	case model.IconAlert:
		return base.Foreground(ColorRed)
	case model.IconWarning:
		return base.Foreground(ColorOrange)
	case model.IconLike:
		return base.Foreground(ColorRed)
	case model.IconComment, model.IconMention:
		return base.Foreground(ColorYellow)
	case model.IconFollow:
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorBlue)
	}
}

// Glyph returns the single-character symbol shown for an icon kind.
func Glyph(k model.IconKind) string {
	switch k {
	case model.IconAlert:
		return "!"
	case model.IconWarning:
		return "▲"
	case model.IconLike:
		return "♥"
	case model.IconComment:
		return "✎"
	case model.IconFollow:
		return "+"
	case model.IconMention:
		return "@"
	case model.IconSocial:
		return "•"
	default:
		return "i"
	}
}
