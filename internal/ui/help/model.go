package help

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/boletin/internal/keys"
	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/internal/theme"
)

// Model is the help overlay. Besides the key bindings it shows who is
// signed in and which role, if any, is being previewed.
type Model struct {
	keys     *keys.KeyMap
	help     help.Model
	identity *model.Identity
	role     string
	width    int
	height   int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Keyboard Shortcuts")

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	helpText := m.help.View(m.keys)

	content := lipgloss.JoinVertical(lipgloss.Left, title, helpText, "", m.sessionLine())

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

func (m Model) sessionLine() string {
	if m.identity == nil {
		return theme.DimmedStyle.Render("Not signed in.")
	}
	name := m.identity.FullName
	if name == "" {
		name = m.identity.Username
	}
	line := fmt.Sprintf("Signed in as %s", name)
	if m.role != "" {
		line += theme.PreviewStyle.Render(fmt.Sprintf("  viewing as %s", m.role))
	}
	return line
}

// SetSession records the signed-in identity and preview role. A nil
// identity means no session.
func (m *Model) SetSession(identity *model.Identity, role string) {
	m.identity = identity
	m.role = role
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
