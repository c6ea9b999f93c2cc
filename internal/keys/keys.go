package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding
	Open key.Binding
	Back key.Binding

	// Read state
	MarkRead    key.Binding
	MarkAllRead key.Binding
	Hide        key.Binding

	// Filters
	NextFilter   key.Binding
	FilterAll    key.Binding
	FilterUnread key.Binding
	FilterSystem key.Binding
	FilterSocial key.Binding

	// Loading
	Refresh key.Binding
	Retry   key.Binding

	Command key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Open: key.NewBinding(
			key.WithKeys("o", " "),
			key.WithHelp("o/space", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("enter", "m"),
			key.WithHelp("enter/m", "mark read"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "mark all read"),
		),
		Hide: key.NewBinding(
			key.WithKeys("x", "delete"),
			key.WithHelp("x", "hide"),
		),
		NextFilter: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next filter"),
		),
		FilterAll: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "all"),
		),
		FilterUnread: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "unread"),
		),
		FilterSystem: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "system"),
		),
		FilterSocial: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "social"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Retry: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "retry failed page"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the status bar.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.MarkRead, k.MarkAllRead, k.Hide, k.NextFilter, k.Help, k.Quit,
	}
}

// FullHelp returns all keybindings grouped for the help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Back, k.Help, k.Quit},
		{k.MarkRead, k.MarkAllRead, k.Hide},
		{k.NextFilter, k.FilterAll, k.FilterUnread, k.FilterSystem, k.FilterSocial},
		{k.Refresh, k.Retry, k.Command},
	}
}
