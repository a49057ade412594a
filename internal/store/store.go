package store

import (
	"context"

	"github.com/nhle/boletin/internal/model"
)

// Store defines the local persistence used by the client: small settings
// values (the role preview), the last known-good unread counters and the
// last notification preview.
type Store interface {
	// === Settings ===

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error

	// === Unread counters snapshot ===

	SaveCounters(ctx context.Context, counters model.UnreadCounters) error
	LoadCounters(ctx context.Context) (model.UnreadCounters, error)

	// === Notification preview cache ===

	ReplaceNotifications(ctx context.Context, items []model.Notification) error
	GetNotifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, kind model.NotificationKind, id string) error
	MarkAllNotificationsRead(ctx context.Context) error

	// Wipe removes every cached value. Called on logout.
	Wipe(ctx context.Context) error
}
