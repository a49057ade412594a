package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/boletin/internal/api"
	"github.com/nhle/boletin/internal/keys"
	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/internal/notify"
	"github.com/nhle/boletin/internal/rolepreview"
	"github.com/nhle/boletin/internal/session"
	appsync "github.com/nhle/boletin/internal/sync"
	"github.com/nhle/boletin/internal/ui"
	"github.com/nhle/boletin/internal/ui/account"
	"github.com/nhle/boletin/internal/ui/command"
	"github.com/nhle/boletin/internal/ui/detail"
	"github.com/nhle/boletin/internal/ui/feed"
	helpview "github.com/nhle/boletin/internal/ui/help"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewAccount
	ViewHelp
	ViewCommand
)

// Deps are the core services the front end drives.
type Deps struct {
	Client     *api.Client
	Session    session.Config
	Terminator *session.Terminator
	Tokens     session.TokenStore
	Preview    *rolepreview.Store
	Aggregator *appsync.Aggregator
	Service    *notify.Service
	Feed       *notify.Feed

	// LoginRequests receives the reason every time the session is torn
	// down, from the Navigator given to the session package.
	LoginRequests <-chan string

	Logger *slog.Logger
}

// Model is the root Bubble Tea model that manages view routing, layout
// and the calls into the core services.
type Model struct {
	deps     Deps
	logger   *slog.Logger
	listener *appsync.Listener

	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	list         feed.Model
	detail       detail.Model
	account      account.Model
	helpView     helpview.Model
	commandView  command.Model
	ready        bool

	counters  model.UnreadCounters
	identity  *model.Identity
	statusMsg string
}

// New creates the root application model. It subscribes to the unread
// counters, which starts polling; call Close when the program exits.
func New(deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	k := keys.DefaultKeyMap()

	m := Model{
		deps:        deps,
		logger:      deps.Logger,
		listener:    appsync.Listen(deps.Aggregator),
		currentView: ViewList,
		keys:        k,
		list:        feed.New(k, 80, 24),
		detail:      detail.New(k, 80, 24),
		account:     account.New(80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		counters:    deps.Aggregator.Current(),
	}
	if cached := deps.Feed.Items(); len(cached) > 0 {
		m.list.SetItems(cached)
	}
	return m
}

// Close stops listening for counter updates and discards any preview
// fetch still in flight.
func (m Model) Close() {
	m.listener.Close()
	m.deps.Feed.Close()
}

// Init starts listening for counters and session teardown, loads the
// preview and resolves the signed-in identity. Without a token it goes
// straight to the login form.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.listener.Wait(),
		m.waitForLoginRequest(),
	}
	if m.deps.Tokens.Get(model.AccessToken) == "" &&
		m.deps.Tokens.Get(model.RefreshToken) == "" {
		cmds = append(cmds, func() tea.Msg {
			return loginRequiredMsg{reason: "Sign in to see your notifications."}
		})
		return tea.Batch(cmds...)
	}
	cmds = append(cmds, m.refreshFeed(), m.fetchIdentity())
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.list.SetSize(contentWidth, contentHeight)
		m.detail.SetSize(contentWidth, contentHeight)
		m.account.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case tea.FocusMsg:
		m.deps.Aggregator.NotifyFocus()
		return m, nil

	case appsync.CountersMsg:
		changed := msg.Counters != m.counters
		m.counters = msg.Counters
		m.list.SetStale(m.deps.Aggregator.Status().State == appsync.SyncError)
		if changed && m.identity != nil {
			return m, tea.Batch(m.listener.Wait(), m.refreshFeed())
		}
		return m, m.listener.Wait()

	case feedLoadedMsg:
		if msg.items == nil {
			// Superseded or torn down.
			return m, nil
		}
		return m, m.list.SetItems(msg.items)

	case identityMsg:
		if msg.err != nil {
			if !session.IsAuthError(msg.err) {
				m.statusMsg = "could not load profile: " + msg.err.Error()
			}
			return m, nil
		}
		id := msg.identity
		m.identity = &id
		m.helpView.SetSession(m.identity, m.deps.Preview.Get())
		return m, nil

	case loginRequiredMsg:
		m.identity = nil
		m.helpView.SetSession(nil, "")
		m.previousView = ViewList
		m.currentView = ViewAccount
		return m, tea.Batch(
			m.account.StartLogin(msg.reason),
			m.waitForLoginRequest(),
		)

	case feed.OpenMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetLoading(true)
		return m, m.openRecord(msg.Notification)

	case recordOpenedMsg:
		m.detail.SetRecord(msg.record, msg.link)
		return m, m.list.SetItems(m.deps.Feed.Items())

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case markedAllReadMsg:
		switch {
		case msg.err != nil:
			m.statusMsg = msg.err.Error()
		case msg.changed:
			m.statusMsg = "all notifications marked as read"
		default:
			m.statusMsg = "nothing to mark"
		}
		m.counters = m.deps.Aggregator.Current()
		return m, m.list.SetItems(m.deps.Feed.Items())

	case account.LoginSubmittedMsg:
		m.statusMsg = "signing in..."
		return m, m.login(msg.Username, msg.Password)

	case loginResultMsg:
		if msg.err != nil {
			m.statusMsg = ""
			return m, m.account.LoginFailed(msg.err)
		}
		m.statusMsg = "signed in"
		m.currentView = ViewList
		m.deps.Aggregator.Refresh()
		return m, tea.Batch(m.refreshFeed(), m.fetchIdentity())

	case account.RoleSelectedMsg:
		m.currentView = ViewList
		m.deps.Preview.Set(msg.Role)
		if msg.Role == "" {
			m.statusMsg = "role preview ended"
		} else {
			m.statusMsg = "viewing as " + msg.Role
		}
		m.deps.Aggregator.Refresh()
		return m, tea.Batch(m.refreshFeed(), m.fetchIdentity())

	case account.LogoutConfirmedMsg:
		m.currentView = ViewList
		m.statusMsg = "logging out..."
		return m, m.logout()

	case loggedOutMsg:
		m.statusMsg = "logged out"
		return m, m.list.SetItems(nil)

	case account.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(msg)

	case tea.KeyMsg:
		// Global keys are not intercepted while a form or search owns
		// the keyboard.
		typing := m.currentView == ViewAccount ||
			m.currentView == ViewCommand ||
			(m.currentView == ViewList && m.list.Searching())

		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.currentView == ViewList && !typing {
				return m, tea.Quit
			}
		case "?":
			if typing {
				break
			}
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil
		case ":":
			if m.currentView == ViewAccount {
				break
			}
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			if typing {
				break
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()
		case "esc":
			if m.currentView == ViewAccount {
				m.currentView = ViewList
				return m, nil
			}
			if m.currentView == ViewHelp || m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
		}

		if m.currentView == ViewList && !typing {
			if next, cmd, ok := m.handleListAction(msg); ok {
				return next, cmd
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleListAction runs the single-key actions available from the list.
func (m Model) handleListAction(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	var name string
	switch {
	case key.Matches(msg, m.keys.Refresh):
		name = "refresh"
	case key.Matches(msg, m.keys.MarkAllRead):
		name = "mark-all-read"
	case key.Matches(msg, m.keys.ViewAs):
		name = "view-as"
	case key.Matches(msg, m.keys.Logout):
		name = "logout"
	default:
		return m, nil, false
	}
	next, cmd := m.runCommand(name, "")
	return next, cmd, true
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewList:
		m.list, cmd = m.list.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewAccount:
		m.account, cmd = m.account.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}
	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title(), m.counters.Total(), m.syncStatus())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

func (m Model) title() string {
	title := "Boletín"
	if m.identity != nil {
		name := m.identity.FullName
		if name == "" {
			name = m.identity.Username
		}
		title = fmt.Sprintf("Boletín · %s", name)
	}
	if role := m.deps.Preview.Get(); role != "" {
		title += fmt.Sprintf(" [as %s]", role)
	}
	return title
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.list.View()
	case ViewDetail:
		return m.detail.View()
	case ViewAccount:
		return m.account.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the counter polling.
func (m Model) syncStatus() string {
	return describeStatus(m.deps.Aggregator.Status(), time.Now())
}

func describeStatus(s appsync.SyncStatus, now time.Time) string {
	switch {
	case s.State == appsync.SyncFetching:
		return "syncing"
	case s.State == appsync.SyncError:
		return "⚠ offline"
	case s.LastSync.IsZero():
		return "idle"
	}
	ago := now.Sub(s.LastSync)
	if ago < time.Minute {
		return "synced just now"
	}
	return fmt.Sprintf("synced %dm ago", int(ago.Minutes()))
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.statusMsg != "" && m.currentView == ViewList {
		return m.statusMsg
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | enter execute | esc back"
	case ViewDetail:
		return "esc back | j/k scroll"
	case ViewAccount:
		return "enter submit | esc cancel"
	default:
		return "enter open | a mark all read | r refresh | v view as | / search | : command | ? help | q quit"
	}
}
