package feed

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/internal/theme"
)

// StalenessThreshold defines how old FetchedAt can be before a record is
// shown as possibly out of date.
var StalenessThreshold = 5 * time.Minute

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for filtering.
func (i Item) FilterValue() string {
	return i.Notification.Title + " " + i.Notification.Description
}

// Title returns the record headline.
func (i Item) Title() string { return i.Notification.Title }

// Description returns the trimmed body summary.
func (i Item) Description() string { return i.Notification.Description }

// ItemDelegate implements list.ItemDelegate. Each record takes two
// lines: the headline with its markers, then the description.
type ItemDelegate struct {
	// stale is shared by reference with the list Model so a failed sync
	// pass is visible without rebuilding the delegate.
	stale *bool
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 1 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single record.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification
	isSelected := index == m.Index()

	marker := "○"
	if n.Unread {
		marker = "●"
	}
	marker = theme.UnreadStyle(n.Unread).Render(marker)

	kindBadge := theme.KindStyle(n.Kind).Render(kindLabel(n.Kind))

	title := n.Title
	if !n.Unread {
		title = theme.DimmedStyle.Render(title)
	}

	staleIndicator := ""
	if d.stale != nil && *d.stale {
		staleIndicator = lipgloss.NewStyle().
			Foreground(theme.ColorYellow).
			Render(" ⚠")
	} else if !n.FetchedAt.IsZero() && time.Since(n.FetchedAt) > StalenessThreshold {
		staleIndicator = theme.DimmedStyle.Render(" ◌")
	}

	timeStr := theme.DimmedStyle.Render(relativeTime(n.FetchedAt))

	head := fmt.Sprintf("%s %s %s%s  %s", marker, kindBadge, title, staleIndicator, timeStr)
	body := theme.DimmedStyle.Render("    " + n.Description)

	if isSelected {
		head = theme.SelectedItemStyle.Render(head)
		body = theme.SelectedItemStyle.UnsetBold().Render(body)
	} else {
		head = theme.ListItemStyle.Render(head)
		body = theme.ListItemStyle.Render(body)
	}

	fmt.Fprint(w, head+"\n"+body)
}

func kindLabel(kind model.NotificationKind) string {
	switch kind {
	case model.KindMessage:
		return "MSG"
	case model.KindNotification:
		return "NOT"
	default:
		return strings.ToUpper(string(kind))
	}
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
