package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/internal/store"
	"github.com/nhle/boletin/tests/testutil"
)

var _ store.Store = (*store.SQLiteStore)(nil)

func TestSettingsRoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	got, err := s.GetSetting(ctx, "preview_role")
	if err != nil {
		t.Fatalf("GetSetting on empty store: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}

	if err := s.SetSetting(ctx, "preview_role", "Padres"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := s.SetSetting(ctx, "preview_role", "Alumnos"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	got, _ = s.GetSetting(ctx, "preview_role")
	if got != "Alumnos" {
		t.Errorf("got %q, want Alumnos", got)
	}

	if err := s.DeleteSetting(ctx, "preview_role"); err != nil {
		t.Fatalf("DeleteSetting: %v", err)
	}
	if err := s.DeleteSetting(ctx, "preview_role"); err != nil {
		t.Fatalf("DeleteSetting twice: %v", err)
	}
	got, _ = s.GetSetting(ctx, "preview_role")
	if got != "" {
		t.Errorf("expected deleted setting to read empty, got %q", got)
	}
}

func TestCountersSnapshot(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	empty, err := s.LoadCounters(ctx)
	if err != nil {
		t.Fatalf("LoadCounters: %v", err)
	}
	if empty.Total() != 0 {
		t.Fatalf("expected zero counters, got %+v", empty)
	}

	want := model.UnreadCounters{Messages: 3, Notifications: 4}
	if err := s.SaveCounters(ctx, want); err != nil {
		t.Fatalf("SaveCounters: %v", err)
	}
	got, err := s.LoadCounters(ctx)
	if err != nil {
		t.Fatalf("LoadCounters: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestNotificationCacheKeepsOrder(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	items := []model.Notification{
		{ID: "9", Kind: model.KindNotification, Unread: true, Title: "Ana recibió una nota", TargetLink: "/alumnos/7/?tab=notas"},
		{ID: "2", Kind: model.KindMessage, Unread: true, Title: "Reunión", TargetLink: "/mensajes/hilo/2"},
		{ID: "5", Kind: model.KindNotification, Unread: false, Title: "Notificación", TargetLink: "/mensajes"},
	}
	if err := s.ReplaceNotifications(ctx, items); err != nil {
		t.Fatalf("ReplaceNotifications: %v", err)
	}

	got, err := s.GetNotifications(ctx)
	if err != nil {
		t.Fatalf("GetNotifications: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("got %d items, want %d", len(got), len(items))
	}
	for i := range items {
		if got[i].ID != items[i].ID || got[i].Kind != items[i].Kind {
			t.Errorf("item %d: got %s/%s, want %s/%s", i, got[i].Kind, got[i].ID, items[i].Kind, items[i].ID)
		}
		if got[i].Unread != items[i].Unread {
			t.Errorf("item %d: unread = %v, want %v", i, got[i].Unread, items[i].Unread)
		}
		if got[i].FetchedAt.IsZero() {
			t.Errorf("item %d: expected fetched_at to be set", i)
		}
	}

	// A second replace drops the previous preview entirely.
	if err := s.ReplaceNotifications(ctx, items[:1]); err != nil {
		t.Fatalf("ReplaceNotifications: %v", err)
	}
	got, _ = s.GetNotifications(ctx)
	if len(got) != 1 {
		t.Errorf("expected 1 cached item after replace, got %d", len(got))
	}
}

func TestMarkNotificationRead(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	now := time.Now()
	items := []model.Notification{
		{ID: "1", Kind: model.KindNotification, Unread: true, FetchedAt: now},
		{ID: "1", Kind: model.KindMessage, Unread: true, FetchedAt: now},
	}
	if err := s.ReplaceNotifications(ctx, items); err != nil {
		t.Fatalf("ReplaceNotifications: %v", err)
	}

	if err := s.MarkNotificationRead(ctx, model.KindMessage, "1"); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	got, _ := s.GetNotifications(ctx)
	if !got[0].Unread {
		t.Error("notification with the same id must stay unread")
	}
	if got[1].Unread {
		t.Error("message 1 should be read")
	}

	if err := s.MarkAllNotificationsRead(ctx); err != nil {
		t.Fatalf("MarkAllNotificationsRead: %v", err)
	}
	got, _ = s.GetNotifications(ctx)
	for _, n := range got {
		if n.Unread {
			t.Errorf("%s/%s still unread after mark all", n.Kind, n.ID)
		}
	}
}

func TestWipe(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_ = s.SetSetting(ctx, "preview_role", "Padres")
	_ = s.SaveCounters(ctx, model.UnreadCounters{Messages: 1})
	_ = s.ReplaceNotifications(ctx, []model.Notification{{ID: "1", Kind: model.KindMessage}})

	if err := s.Wipe(ctx); err != nil {
		t.Fatalf("Wipe: %v", err)
	}

	if v, _ := s.GetSetting(ctx, "preview_role"); v != "" {
		t.Errorf("setting survived wipe: %q", v)
	}
	if c, _ := s.LoadCounters(ctx); c.Total() != 0 {
		t.Errorf("counters survived wipe: %+v", c)
	}
	if items, _ := s.GetNotifications(ctx); len(items) != 0 {
		t.Errorf("notifications survived wipe: %d", len(items))
	}
}
