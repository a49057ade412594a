package testutil

import (
	"context"
	"testing"

	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/internal/store"
)

// NewTestStore opens an in-memory SQLiteStore with every migration applied
// and closes it when the test ends.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return s
}

// SeedCounters stores counters as the last known-good pass.
func SeedCounters(t *testing.T, s *store.SQLiteStore, counters model.UnreadCounters) {
	t.Helper()
	if err := s.SaveCounters(context.Background(), counters); err != nil {
		t.Fatalf("seeding counters: %v", err)
	}
}

// SeedPreview stores items as the cached notification preview.
func SeedPreview(t *testing.T, s *store.SQLiteStore, items ...model.Notification) {
	t.Helper()
	if err := s.ReplaceNotifications(context.Background(), items); err != nil {
		t.Fatalf("seeding preview: %v", err)
	}
}

// SeedSetting stores a single setting, such as the preview role.
func SeedSetting(t *testing.T, s *store.SQLiteStore, key, value string) {
	t.Helper()
	if err := s.SetSetting(context.Background(), key, value); err != nil {
		t.Fatalf("seeding setting %q: %v", key, err)
	}
}
