package app

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/notifeed/internal/feed"
	"github.com/nhle/notifeed/internal/keys"
	"github.com/nhle/notifeed/internal/model"
	"github.com/nhle/notifeed/internal/ui"
	"github.com/nhle/notifeed/internal/ui/command"
	"github.com/nhle/notifeed/internal/ui/detail"
	"github.com/nhle/notifeed/internal/ui/feedlist"
	helpview "github.com/nhle/notifeed/internal/ui/help"
	"github.com/nhle/notifeed/pkg/logger"
)

// actionTimeout bounds a single user-triggered backend call.
const actionTimeout = 30 * time.Second

// Feed is the part of the feed engine the UI drives.
type Feed interface {
	Subscribe() (<-chan feed.Snapshot, func())
	RequestNextPage(ctx context.Context) error
	Retry(ctx context.Context) error
	Refresh(ctx context.Context) error
	ChangeFilter(ctx context.Context, filter model.FilterKind) error
	KeyOf(n model.Notification) model.Key
	MarkAsRead(ctx context.Context, k model.Key) error
	MarkAllAsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, k model.Key) error
}

var _ Feed = (*feed.Engine)(nil)

// snapshotMsg carries a new engine snapshot to the UI.
type snapshotMsg feed.Snapshot

// subscriptionClosedMsg is sent once the engine stops publishing.
type subscriptionClosedMsg struct{}

// actionDoneMsg reports the outcome of a background engine call.
type actionDoneMsg struct {
	op  string
	err error
}

// Model is the root Bubble Tea model. It renders engine snapshots and turns
// key presses into engine operations.
type Model struct {
	feed        Feed
	snaps       <-chan feed.Snapshot
	cancel      func()
	layout      ui.Layout
	keys        *keys.KeyMap
	list        feedlist.Model
	detail      detail.Model
	help        helpview.Model
	palette     command.Model
	showHelp    bool
	showDetail  bool
	showCommand bool
	ready       bool
	flash       string
}

// New creates the root model and subscribes to f.
func New(f Feed) Model {
	k := keys.DefaultKeyMap()
	ch, cancel := f.Subscribe()
	return Model{
		feed:    f,
		snaps:   ch,
		cancel:  cancel,
		layout:  ui.NewLayout(80, 24),
		keys:    k,
		list:    feedlist.New(80, 22),
		detail:  detail.New(k, 80, 22),
		help:    helpview.New(k, 80, 22),
		palette: command.New(80, 22),
	}
}

// Init waits for snapshots, loads the first page and starts the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForSnapshot(m.snaps),
		m.run("load", m.feed.RequestNextPage),
		m.list.Tick(),
	)
}

// waitForSnapshot blocks until the engine publishes the next snapshot.
func waitForSnapshot(ch <-chan feed.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return subscriptionClosedMsg{}
		}
		return snapshotMsg(s)
	}
}

// run executes an engine call off the UI goroutine.
func (m Model) run(op string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{op: op, err: fn(ctx)}
	}
}

// Update handles messages and dispatches keys to engine operations.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.list.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.detail.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.help.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.palette.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		return m, nil

	case snapshotMsg:
		cmd := m.list.SetSnapshot(feed.Snapshot(msg))
		m.detail.Refresh(msg.Records)
		return m, tea.Batch(cmd, waitForSnapshot(m.snaps), m.loadMoreIfNeeded())

	case subscriptionClosedMsg:
		return m, nil

	case actionDoneMsg:
		m.flash = flashFor(msg)
		if msg.op == feed.OpDelete && msg.err == nil {
			m.showDetail = false
		}
		return m, nil

	case detail.BackMsg:
		m.showDetail = false
		return m, nil

	case command.CommandMsg:
		m.showCommand = false
		return m, m.executeCommand(msg)

	case command.CancelMsg:
		m.showCommand = false
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showCommand {
		if msg.String() == "ctrl+c" {
			m.cancel()
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}
	if key.Matches(msg, m.keys.Command) {
		m.showCommand = true
		return m, m.palette.Focus()
	}
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Help) {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.showHelp {
		if msg.String() == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	m.flash = ""

	if m.showDetail {
		return m.handleDetailKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Open):
		n, ok := m.list.Selected()
		if !ok {
			return m, nil
		}
		m.detail.SetNotification(n)
		m.showDetail = true
		return m, nil

	case key.Matches(msg, m.keys.MarkRead):
		n, ok := m.list.Selected()
		if !ok || n.IsRead {
			return m, nil
		}
		k := m.feed.KeyOf(n)
		return m, m.run(feed.OpMarkAsRead, func(ctx context.Context) error {
			return m.feed.MarkAsRead(ctx, k)
		})

	case key.Matches(msg, m.keys.MarkAllRead):
		return m, m.run(feed.OpMarkAllAsRead, m.feed.MarkAllAsRead)

	case key.Matches(msg, m.keys.Hide):
		n, ok := m.list.Selected()
		if !ok {
			return m, nil
		}
		k := m.feed.KeyOf(n)
		return m, m.run(feed.OpDelete, func(ctx context.Context) error {
			return m.feed.DeleteNotification(ctx, k)
		})

	case key.Matches(msg, m.keys.NextFilter):
		return m, m.changeFilter(m.list.Snapshot().Filter.Next())
	case key.Matches(msg, m.keys.FilterAll):
		return m, m.changeFilter(model.FilterAll)
	case key.Matches(msg, m.keys.FilterUnread):
		return m, m.changeFilter(model.FilterUnread)
	case key.Matches(msg, m.keys.FilterSystem):
		return m, m.changeFilter(model.FilterSystem)
	case key.Matches(msg, m.keys.FilterSocial):
		return m, m.changeFilter(model.FilterSocial)

	case key.Matches(msg, m.keys.Refresh):
		return m, m.run("refresh", m.feed.Refresh)

	case key.Matches(msg, m.keys.Retry):
		if m.list.Snapshot().State != feed.StateErrored {
			return m, nil
		}
		return m, m.run("retry", m.feed.Retry)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, tea.Batch(cmd, m.loadMoreIfNeeded())
}

// handleDetailKey acts on the record shown in the detail view.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n, ok := m.detail.Current()
	k := m.feed.KeyOf(n)
	switch {
	case ok && !n.IsRead && key.Matches(msg, m.keys.MarkRead):
		return m, m.run(feed.OpMarkAsRead, func(ctx context.Context) error {
			return m.feed.MarkAsRead(ctx, k)
		})
	case ok && key.Matches(msg, m.keys.Hide):
		return m, m.run(feed.OpDelete, func(ctx context.Context) error {
			return m.feed.DeleteNotification(ctx, k)
		})
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

// executeCommand runs a command from the palette.
func (m Model) executeCommand(c command.CommandMsg) tea.Cmd {
	switch c.Verb {
	case command.VerbFilter:
		return m.changeFilter(c.Filter)
	case command.VerbRefresh:
		return m.run("refresh", m.feed.Refresh)
	case command.VerbRetry:
		return m.run("retry", m.feed.Retry)
	case command.VerbReadAll:
		return m.run(feed.OpMarkAllAsRead, m.feed.MarkAllAsRead)
	case command.VerbQuit:
		m.cancel()
		return tea.Quit
	}
	return nil
}

func (m Model) changeFilter(f model.FilterKind) tea.Cmd {
	if f == m.list.Snapshot().Filter {
		return nil
	}
	return m.run("filter", func(ctx context.Context) error {
		return m.feed.ChangeFilter(ctx, f)
	})
}

// loadMoreIfNeeded requests the next page when the selection nears the end
// of the loaded records.
func (m Model) loadMoreIfNeeded() tea.Cmd {
	if !m.list.WantsMore() {
		return nil
	}
	return m.run("load", m.feed.RequestNextPage)
}

// flashFor turns an action result into a status bar message. Expected
// pagination races are silent.
func flashFor(msg actionDoneMsg) string {
	err := msg.err
	switch {
	case err == nil,
		errors.Is(err, feed.ErrFetchInFlight),
		errors.Is(err, feed.ErrExhausted):
		return ""
	case errors.Is(err, feed.ErrRetryRequired):
		return "page failed to load, press R to retry"
	}

	logger.Debug("ui action failed", zap.String("op", msg.op), zap.Error(err))

	var mutErr *feed.MutationError
	if errors.As(err, &mutErr) {
		if errors.Is(err, feed.ErrNotFound) {
			return "notification is no longer in the feed"
		}
		switch mutErr.Op {
		case feed.OpMarkAllAsRead:
			return "could not mark all as read, changes reverted"
		default:
			return "could not mark as read, change reverted"
		}
	}
	// Fetch failures are already shown in the feed footer.
	if msg.op == "load" || msg.op == "retry" || msg.op == "filter" {
		return ""
	}
	return msg.op + " failed: " + err.Error()
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	snap := m.list.Snapshot()
	header := m.layout.RenderHeader(snap.Filter, snap.UnreadCount, snap.Stale)

	var content string
	switch {
	case m.showCommand:
		content = m.palette.View()
	case m.showHelp:
		content = m.help.View()
	case m.showDetail:
		content = m.detail.View()
	default:
		content = m.list.View()
	}

	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.flash)
	return m.layout.RenderWithFrame(header, content, statusBar)
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.showCommand {
		return "enter execute | esc cancel"
	}
	if m.showHelp {
		return "? close help | esc back"
	}
	if m.showDetail {
		return "esc back | enter read | x hide | j/k scroll"
	}
	return "o open | enter read | M all read | x hide | tab filter | r refresh | : command | ? help | q quit"
}
