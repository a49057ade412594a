package feed

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/boletin/internal/keys"
	"github.com/nhle/boletin/internal/model"
)

func sampleItems() []model.Notification {
	return []model.Notification{
		{ID: "1", Kind: model.KindNotification, Unread: true, Title: "Ana recibió una nota", Description: "Matemática: 9"},
		{ID: "2", Kind: model.KindMessage, Unread: true, Title: "Reunión de padres", Description: "El jueves a las 18hs"},
		{ID: "3", Kind: model.KindNotification, Unread: false, Title: "Juan recibió una sanción", Description: "Llegada tarde"},
	}
}

func TestFilter(t *testing.T) {
	items := sampleItems()

	tests := []struct {
		name  string
		kinds map[model.NotificationKind]bool
		query string
		want  []string
	}{
		{name: "no filters", want: []string{"1", "2", "3"}},
		{
			name:  "notifications only",
			kinds: map[model.NotificationKind]bool{model.KindNotification: true},
			want:  []string{"1", "3"},
		},
		{
			name:  "both kinds",
			kinds: map[model.NotificationKind]bool{model.KindNotification: true, model.KindMessage: true},
			want:  []string{"1", "2", "3"},
		},
		{name: "query matches title case-insensitively", query: "REUNIÓN", want: []string{"2"}},
		{name: "query matches description", query: "tarde", want: []string{"3"}},
		{
			name:  "query and kind combine",
			kinds: map[model.NotificationKind]bool{model.KindMessage: true},
			query: "nota",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(items, tt.kinds, tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("Filter() returned %d items, want %d", len(got), len(tt.want))
			}
			for i, n := range got {
				if n.ID != tt.want[i] {
					t.Errorf("item %d = %q, want %q", i, n.ID, tt.want[i])
				}
			}
		})
	}
}

func TestModel_OpenSelected(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetItems(sampleItems())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter produced no command")
	}
	msg, ok := cmd().(OpenMsg)
	if !ok {
		t.Fatalf("enter produced %T, want OpenMsg", cmd())
	}
	if msg.Notification.ID != "1" {
		t.Errorf("opened %q, want the first record", msg.Notification.ID)
	}
}

func TestModel_KindToggle(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetItems(sampleItems())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}})
	if n := len(m.list.Items()); n != 1 {
		t.Fatalf("after toggling messages %d items visible, want 1", n)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}})
	if n := len(m.list.Items()); n != 3 {
		t.Fatalf("after toggling messages off %d items visible, want 3", n)
	}
}

func TestModel_SetItemsKeepsFilters(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetItems(sampleItems())
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'1'}})

	m.SetItems(sampleItems()[:2])
	if n := len(m.list.Items()); n != 1 {
		t.Errorf("%d items visible after reload, want 1", n)
	}
}
