// Package account holds the forms that change who the session belongs
// to: password login, the role preview picker and the logout confirm.
package account

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/internal/theme"
)

// Mode selects the active form.
type Mode int

const (
	ModeIdle Mode = iota
	ModeLogin
	ModeViewAs
	ModeConfirmLogout
)

// LoginSubmittedMsg carries the credentials entered in the login form.
type LoginSubmittedMsg struct {
	Username string
	Password string
}

// RoleSelectedMsg carries the chosen preview role; "" ends the preview.
type RoleSelectedMsg struct {
	Role string
}

// LogoutConfirmedMsg is sent when the user confirms logging out.
type LogoutConfirmedMsg struct{}

// CancelMsg is sent when a form is aborted.
type CancelMsg struct {
	Mode Mode
}

// fields lives on the heap so the pointers huh keeps stay valid while the
// Model is passed around by value.
type fields struct {
	username string
	password string
	role     string
	confirm  bool
}

// Model is the account view component.
type Model struct {
	mode   Mode
	form   *huh.Form
	fields *fields
	notice string
	err    string
	width  int
	height int
}

// New creates a new account view model.
func New(width, height int) Model {
	return Model{
		fields: &fields{},
		width:  width,
		height: height,
	}
}

// Mode returns the active form.
func (m Model) Mode() Mode {
	return m.mode
}

// StartLogin shows the login form. notice explains why the user is being
// asked to sign in; it may be empty.
func (m *Model) StartLogin(notice string) tea.Cmd {
	m.mode = ModeLogin
	m.notice = notice
	m.err = ""
	m.fields.password = ""
	m.form = m.buildLoginForm()
	return m.form.Init()
}

// StartViewAs shows the role picker with current preselected.
func (m *Model) StartViewAs(current string) tea.Cmd {
	m.mode = ModeViewAs
	m.err = ""
	m.fields.role = current
	m.form = m.buildViewAsForm()
	return m.form.Init()
}

// StartLogout asks for confirmation before logging out.
func (m *Model) StartLogout() tea.Cmd {
	m.mode = ModeConfirmLogout
	m.err = ""
	m.fields.confirm = false
	m.form = m.buildLogoutForm()
	return m.form.Init()
}

// LoginFailed re-opens the login form showing err.
func (m *Model) LoginFailed(err error) tea.Cmd {
	cmd := m.StartLogin(m.notice)
	m.err = err.Error()
	return cmd
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update forwards msg to the active form and reports its outcome.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.mode == ModeIdle {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.complete()
	case huh.StateAborted:
		mode := m.mode
		m.mode = ModeIdle
		return m, func() tea.Msg { return CancelMsg{Mode: mode} }
	}
	return m, cmd
}

func (m Model) complete() (Model, tea.Cmd) {
	mode := m.mode
	m.mode = ModeIdle
	f := *m.fields

	switch mode {
	case ModeLogin:
		m.fields.password = ""
		return m, func() tea.Msg {
			return LoginSubmittedMsg{
				Username: strings.TrimSpace(f.username),
				Password: f.password,
			}
		}
	case ModeViewAs:
		return m, func() tea.Msg { return RoleSelectedMsg{Role: f.role} }
	case ModeConfirmLogout:
		if !f.confirm {
			return m, func() tea.Msg { return CancelMsg{Mode: mode} }
		}
		return m, func() tea.Msg { return LogoutConfirmedMsg{} }
	}
	return m, nil
}

func (m Model) buildLoginForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(&m.fields.username).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fields.password).
				Validate(validateRequired("Password")),
		),
	).WithWidth(m.formWidth())
}

func (m Model) buildViewAsForm() *huh.Form {
	options := []huh.Option[string]{huh.NewOption("My own role", "")}
	for _, r := range model.AllRoles {
		options = append(options, huh.NewOption(r, r))
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("View as").
				Description("Simulate another role on every request").
				Options(options...).
				Value(&m.fields.role),
		),
	).WithWidth(m.formWidth())
}

func (m Model) buildLogoutForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Log out?").
				Description("Tokens and cached notifications are removed from this machine.").
				Affirmative("Log out").
				Negative("Cancel").
				Value(&m.fields.confirm),
		),
	).WithWidth(m.formWidth())
}

// View renders the active form.
func (m Model) View() string {
	if m.form == nil || m.mode == ModeIdle {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	var title string
	switch m.mode {
	case ModeLogin:
		title = "Sign in"
	case ModeViewAs:
		title = "Role preview"
	case ModeConfirmLogout:
		title = "Log out"
	}

	parts := []string{titleStyle.Render(title)}
	if m.notice != "" && m.mode == ModeLogin {
		parts = append(parts, theme.HelpStyle.Render(m.notice))
	}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	parts = append(parts, m.form.View())

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m Model) formWidth() int {
	return max(20, min(m.width-8, 60))
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
