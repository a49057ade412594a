package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/boletin/internal/keys"
	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// Model shows one opened record and the route it points to.
type Model struct {
	record   *model.Notification
	link     string
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg {
			return BackMsg{}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	placeholder := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.loading {
		return placeholder.Render("Opening...")
	}
	if m.record == nil {
		return placeholder.Render("Nothing selected")
	}
	return m.viewport.View()
}

func (m Model) renderContent() string {
	if m.record == nil {
		return ""
	}
	n := m.record
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(n.Title))

	state := "read"
	if n.Unread {
		state = "unread"
	}
	badgeLine := lipgloss.JoinHorizontal(
		lipgloss.Top,
		theme.KindStyle(n.Kind).Render(strings.ToUpper(string(n.Kind))),
		"  ",
		theme.UnreadStyle(n.Unread).Render(state),
	)
	sections = append(sections, badgeLine, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	if n.ID != "" {
		sections = append(sections, fmt.Sprintf("%s      %s",
			metaStyle.Render("ID:"), valStyle.Render(n.ID)))
	}
	if !n.FetchedAt.IsZero() {
		sections = append(sections, fmt.Sprintf("%s %s",
			metaStyle.Render("Fetched:"), valStyle.Render(n.FetchedAt.Format("2006-01-02 15:04"))))
	}
	sections = append(sections, fmt.Sprintf("%s    %s",
		metaStyle.Render("Link:"), valStyle.Render(m.link)))

	separator := lipgloss.NewStyle().
		Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(0, min(m.width-4, 80))))
	sections = append(sections, "", separator, "")

	body := n.Description
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No description")
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetRecord updates the record being displayed. link is the route the
// record resolves to once opened.
func (m *Model) SetRecord(n model.Notification, link string) {
	m.record = &n
	m.link = link
	m.loading = false
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.record != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
