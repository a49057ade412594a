package feed

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/boletin/internal/keys"
	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/internal/theme"
)

// OpenMsg is sent when the user opens a record.
type OpenMsg struct {
	Notification model.Notification
}

// Model is the notification list view.
type Model struct {
	list        list.Model
	keys        *keys.KeyMap
	all         []model.Notification
	kinds       map[model.NotificationKind]bool
	query       string
	searchMode  bool
	searchInput textinput.Model
	stale       *bool
	loaded      bool
	width       int
	height      int
}

// New creates a new notification list model.
func New(k *keys.KeyMap, width, height int) Model {
	stale := new(bool)
	l := list.New([]list.Item{}, ItemDelegate{stale: stale}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search notifications..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		keys:        k,
		kinds:       make(map[model.NotificationKind]bool),
		searchInput: si,
		stale:       stale,
		width:       width,
		height:      height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetItems replaces the records shown, keeping the active filters.
func (m *Model) SetItems(items []model.Notification) tea.Cmd {
	m.all = items
	m.loaded = true
	return m.apply()
}

// SetStale marks the list as possibly out of date after a failed pass.
func (m *Model) SetStale(stale bool) {
	*m.stale = stale
}

// SelectedItem returns the highlighted record.
func (m Model) SelectedItem() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.query = strings.TrimSpace(m.searchInput.Value())
		return m, m.apply()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.query = ""
		return m, m.apply()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Open):
		n, ok := m.SelectedItem()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return OpenMsg{Notification: n}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.FilterNotifications):
		m.toggleKind(model.KindNotification)
		return m, m.apply()

	case key.Matches(msg, m.keys.FilterMessages):
		m.toggleKind(model.KindMessage)
		return m, m.apply()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) toggleKind(kind model.NotificationKind) {
	if m.kinds[kind] {
		delete(m.kinds, kind)
	} else {
		m.kinds[kind] = true
	}
}

// apply rebuilds the list items from the full set and the filters.
func (m *Model) apply() tea.Cmd {
	visible := Filter(m.all, m.kinds, m.query)
	items := make([]list.Item, len(visible))
	for i, n := range visible {
		items[i] = Item{Notification: n}
	}
	return m.list.SetItems(items)
}

// Filter returns the records matching the kind filter and the search
// query. An empty kind set admits every kind; the query matches title or
// description, case-insensitively.
func Filter(
	items []model.Notification,
	kinds map[model.NotificationKind]bool,
	query string,
) []model.Notification {
	query = strings.ToLower(query)
	out := make([]model.Notification, 0, len(items))
	for _, n := range items {
		if len(kinds) > 0 && !kinds[n.Kind] {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(Item{Notification: n}.FilterValue()), query) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// View renders the list view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case !m.loaded:
		return style.Render("Loading notifications...")
	case len(m.kinds) > 0 || m.query != "":
		return style.Render("No matching notifications.\nTry adjusting your filters.")
	default:
		return style.Render("You're all caught up.\n\nPress r to check again.")
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
