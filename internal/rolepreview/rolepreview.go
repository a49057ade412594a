// Package rolepreview holds the "view as" role a super-user may simulate.
//
// The active role is read by every outgoing request and broadcast to all
// subscribers whenever it changes, so open views converge on one value.
package rolepreview

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/nhle/boletin/internal/model"
	"github.com/nhle/boletin/internal/signal"
)

// SettingKey is the settings key the active role is persisted under.
const SettingKey = "preview_role"

// Settings is the persistence the store needs. store.SQLiteStore
// satisfies it.
type Settings interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// Store is the process-wide role preview.
type Store struct {
	settings Settings
	logger   *slog.Logger

	mu   sync.RWMutex
	role string

	changed signal.Broadcaster[string]
}

// New loads the persisted role from settings. A nil settings keeps the
// role in memory only; a nil logger uses slog.Default().
func New(ctx context.Context, settings Settings, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{settings: settings, logger: logger}
	if settings != nil {
		role, err := settings.GetSetting(ctx, SettingKey)
		if err != nil {
			logger.Debug("loading preview role", "error", err)
		}
		s.role = role
	}
	return s
}

// Get returns the active role, or "" when no preview is active.
func (s *Store) Get() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// Set activates role, or clears the preview when role is empty, and
// notifies every subscriber with the new value. Persistence failures are
// logged and do not prevent the in-memory change.
func (s *Store) Set(role string) {
	role = strings.TrimSpace(role)

	s.mu.Lock()
	s.role = role
	s.mu.Unlock()

	if s.settings != nil {
		ctx := context.Background()
		var err error
		if role == "" {
			err = s.settings.DeleteSetting(ctx, SettingKey)
		} else {
			err = s.settings.SetSetting(ctx, SettingKey, role)
		}
		if err != nil {
			s.logger.Warn("persisting preview role", "role", role, "error", err)
		}
	}

	s.changed.Emit(role)
}

// Subscribe registers handler for role changes. The returned func
// unsubscribes.
func (s *Store) Subscribe(handler func(role string)) (unsubscribe func()) {
	return s.changed.Subscribe(handler)
}

// EffectiveGroups returns the groups the UI should act on: a super-user
// with an active preview acts as exactly that role, everyone else keeps
// the groups the server reported.
func EffectiveGroups(identity model.Identity, role string) []string {
	if identity.IsSuperuser && role != "" {
		return []string{role}
	}
	return identity.Groups
}
