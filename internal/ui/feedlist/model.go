package feedlist

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notifeed/internal/feed"
	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/theme"
)

// prefetchThreshold is how close to the last row the selection must be
// before the next page is requested.
const prefetchThreshold = 3

// Model is the infinite-scroll feed view. It renders engine snapshots and
// tells its parent when more records are needed.
type Model struct {
	list    list.Model
	spinner spinner.Model
	snap    feed.Snapshot
	width   int
	height  int
}

// New creates a feed list.
func New(width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-1)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		list:    l,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Tick starts the loading spinner.
func (m Model) Tick() tea.Cmd {
	return m.spinner.Tick
}

// Snapshot returns the snapshot currently shown.
func (m Model) Snapshot() feed.Snapshot {
	return m.snap
}

// SetSnapshot replaces the rows, keeping the selection on the same record
// when it is still present.
func (m *Model) SetSnapshot(s feed.Snapshot) tea.Cmd {
	prev, hadPrev := m.Selected()
	prevIndex := m.list.Index()
	filterChanged := s.Filter != m.snap.Filter
	m.snap = s

	items := make([]list.Item, len(s.Records))
	target := -1
	for i, n := range s.Records {
		items[i] = Item{Notification: n}
		if hadPrev && target < 0 && n.ID == prev.ID && n.Category == prev.Category {
			target = i
		}
	}
	cmd := m.list.SetItems(items)

	switch {
	case len(items) == 0:
	case filterChanged:
		m.list.Select(0)
	case target >= 0:
		m.list.Select(target)
	default:
		m.list.Select(min(prevIndex, len(items)-1))
	}
	return cmd
}

// Selected returns the focused notification.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// WantsMore reports whether the next page should be requested: the
// selection is near the end, more pages exist, and nothing is loading or
// waiting for a retry.
func (m Model) WantsMore() bool {
	s := m.snap
	if !s.HasMore || s.Loading || s.State == feed.StateErrored {
		return false
	}
	n := len(m.list.Items())
	return n == 0 || m.list.Index() >= n-1-prefetchThreshold
}

// Update handles navigation and spinner ticks.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if tick, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(tick)
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the rows and a footer describing the load state.
func (m Model) View() string {
	footer := m.footer()

	if len(m.list.Items()) == 0 {
		empty := lipgloss.NewStyle().
			Width(m.width).
			Height(max(m.height-1, 0)).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render(m.emptyText())
		return lipgloss.JoinVertical(lipgloss.Left, empty, footer)
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), footer)
}

func (m Model) emptyText() string {
	switch {
	case m.snap.Loading:
		return "Loading notifications..."
	case m.snap.State == feed.StateErrored:
		return "Could not load notifications."
	case m.snap.Filter == model.FilterUnread:
		return "You're all caught up."
	default:
		return "No notifications."
	}
}

func (m Model) footer() string {
	style := theme.HelpStyle.PaddingLeft(2)
	switch {
	case m.snap.Loading:
		return style.Render(m.spinner.View() + " loading")
	case m.snap.State == feed.StateErrored:
		msg := "page failed to load"
		if m.snap.Err != nil {
			msg += ": " + m.snap.Err.Error()
		}
		return theme.ErrorStyle.PaddingLeft(2).Render(msg + "  (R to retry)")
	case m.snap.State == feed.StateExhausted && len(m.snap.Records) > 0:
		return style.Render("end of feed")
	default:
		return ""
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-1, 0))
}
