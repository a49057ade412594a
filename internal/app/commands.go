package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/internal/session"
	"github.com/nhle/boletin/internal/ui/account"
	"github.com/nhle/boletin/internal/ui/command"
)

// requestTimeout bounds each call made on behalf of a key press.
const requestTimeout = 30 * time.Second

// feedLoadedMsg carries a fresh preview. nil items mean the fetch was
// superseded or the feed was closed.
type feedLoadedMsg struct {
	items []model.Notification
}

// identityMsg carries the whoami result.
type identityMsg struct {
	identity model.Identity
	err      error
}

// loginRequiredMsg is sent when the session was torn down or is missing.
type loginRequiredMsg struct {
	reason string
}

// loginResultMsg is sent after a password login attempt.
type loginResultMsg struct {
	err error
}

// loggedOutMsg is sent after a user-requested logout finished.
type loggedOutMsg struct{}

// recordOpenedMsg is sent after a record was opened (and acknowledged
// when it was unread).
type recordOpenedMsg struct {
	record model.Notification
	link   string
}

// markedAllReadMsg is sent after a mark-all request.
type markedAllReadMsg struct {
	changed bool
	err     error
}

// waitForLoginRequest blocks until the session package asks for the
// login surface. It should be issued again after each loginRequiredMsg.
func (m Model) waitForLoginRequest() tea.Cmd {
	ch := m.deps.LoginRequests
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		reason, ok := <-ch
		if !ok {
			return nil
		}
		return loginRequiredMsg{reason: fmt.Sprintf("Your session ended (%s). Sign in again.", reason)}
	}
}

func (m Model) refreshFeed() tea.Cmd {
	f := m.deps.Feed
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return feedLoadedMsg{items: f.Refresh(ctx)}
	}
}

func (m Model) fetchIdentity() tea.Cmd {
	c := m.deps.Client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		id, err := c.WhoAmI(ctx)
		return identityMsg{identity: id, err: err}
	}
}

func (m Model) openRecord(n model.Notification) tea.Cmd {
	f := m.deps.Feed
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		link := f.Open(ctx, n)
		for _, it := range f.Items() {
			if it.Kind == n.Kind && it.ID == n.ID {
				n = it
				break
			}
		}
		return recordOpenedMsg{record: n, link: link}
	}
}

func (m Model) markAllRead(messages bool) tea.Cmd {
	f := m.deps.Feed
	svc := m.deps.Service
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if messages {
			if !svc.MarkAllMessagesRead(ctx) {
				return markedAllReadMsg{err: fmt.Errorf("could not mark messages as read")}
			}
			return markedAllReadMsg{changed: true}
		}
		return markedAllReadMsg{changed: f.MarkAllRead(ctx)}
	}
}

func (m Model) login(username, password string) tea.Cmd {
	cfg := m.deps.Session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return loginResultMsg{err: session.Login(ctx, cfg, username, password)}
	}
}

func (m Model) logout() tea.Cmd {
	t := m.deps.Terminator
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		t.Logout(ctx)
		return loggedOutMsg{}
	}
}

// executeCommand runs a command typed into the palette.
func (m Model) executeCommand(msg command.CommandMsg) (tea.Model, tea.Cmd) {
	return m.runCommand(msg.Name(), msg.Arg())
}

// runCommand is shared by the palette and the single-key list actions.
func (m Model) runCommand(name, arg string) (tea.Model, tea.Cmd) {
	m.statusMsg = ""

	switch name {
	case "refresh":
		m.statusMsg = "refreshing..."
		m.deps.Aggregator.Refresh()
		return m, m.refreshFeed()

	case "mark-all-read":
		return m, m.markAllRead(false)

	case "mark-messages-read":
		return m, m.markAllRead(true)

	case "view-as":
		// An active preview may hide the super-user flag, so it can
		// always be ended.
		previewing := m.deps.Preview.Get() != ""
		if !previewing && (m.identity == nil || !m.identity.IsSuperuser) {
			m.statusMsg = "role preview is only available to administrators"
			return m, nil
		}
		if arg != "" {
			if arg == "none" {
				arg = ""
			}
			if arg != "" && !model.IsValidRole(arg) {
				m.statusMsg = fmt.Sprintf("unknown role %q", arg)
				return m, nil
			}
			return m.Update(account.RoleSelectedMsg{Role: arg})
		}
		m.previousView = ViewList
		m.currentView = ViewAccount
		return m, m.account.StartViewAs(m.deps.Preview.Get())

	case "whoami":
		if m.identity == nil {
			m.statusMsg = "not signed in"
			return m, nil
		}
		m.statusMsg = fmt.Sprintf("%s (%s)", m.identity.Username, m.identity.Email)
		return m, nil

	case "login":
		m.previousView = ViewList
		m.currentView = ViewAccount
		return m, m.account.StartLogin("")

	case "logout":
		m.previousView = ViewList
		m.currentView = ViewAccount
		return m, m.account.StartLogout()

	case "quit", "q":
		return m, tea.Quit

	default:
		m.statusMsg = fmt.Sprintf("unknown command: %s", name)
		return m, nil
	}
}
