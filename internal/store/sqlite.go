package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/boletin/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
// dbPath may be ":memory:".
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serializes writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// GetSetting returns the value stored under key, or "" when absent.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting inserts or replaces the value stored under key.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) DeleteSetting(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting setting %s: %w", key, err)
	}
	return nil
}

// SaveCounters records counters as the last known-good unread values.
func (s *SQLiteStore) SaveCounters(ctx context.Context, counters model.UnreadCounters) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, name := range []string{model.CounterMessages, model.CounterNotifications} {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO counters (name, value, updated_at)
			VALUES (?, ?, ?)`,
			name, counters.Get(name), now,
		)
		if err != nil {
			return fmt.Errorf("saving counter %s: %w", name, err)
		}
	}

	return tx.Commit()
}

// counterRow maps a row of the counters table.
type counterRow struct {
	Name  string `db:"name"`
	Value int    `db:"value"`
}

// LoadCounters returns the last saved counters; missing rows read as zero.
func (s *SQLiteStore) LoadCounters(ctx context.Context) (model.UnreadCounters, error) {
	var rows []counterRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT name, value FROM counters"); err != nil {
		return model.UnreadCounters{}, fmt.Errorf("loading counters: %w", err)
	}

	var counters model.UnreadCounters
	for _, r := range rows {
		counters = counters.With(r.Name, r.Value)
	}
	return counters, nil
}

// notificationRow maps a row of the notifications table.
type notificationRow struct {
	ID          string    `db:"id"`
	Kind        string    `db:"kind"`
	Unread      bool      `db:"unread"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	TargetLink  string    `db:"target_link"`
	Position    int       `db:"position"`
	FetchedAt   time.Time `db:"fetched_at"`
}

// ReplaceNotifications swaps the cached preview for items, keeping their
// order.
func (s *SQLiteStore) ReplaceNotifications(ctx context.Context, items []model.Notification) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
		return fmt.Errorf("clearing notifications: %w", err)
	}

	const query = `
		INSERT OR REPLACE INTO notifications (
			id, kind, unread, title, description, target_link, position, fetched_at
		) VALUES (
			:id, :kind, :unread, :title, :description, :target_link, :position, :fetched_at
		)`

	for i, n := range items {
		fetchedAt := n.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = time.Now()
		}
		row := notificationRow{
			ID:          n.ID,
			Kind:        string(n.Kind),
			Unread:      n.Unread,
			Title:       n.Title,
			Description: n.Description,
			TargetLink:  n.TargetLink,
			Position:    i,
			FetchedAt:   fetchedAt.UTC(),
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("caching notification %s/%s: %w", n.Kind, n.ID, err)
		}
	}

	return tx.Commit()
}

// GetNotifications returns the cached preview in its original order.
func (s *SQLiteStore) GetNotifications(ctx context.Context) ([]model.Notification, error) {
	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, kind, unread, title, description, target_link, position, fetched_at
		FROM notifications ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}

	items := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		items = append(items, model.Notification{
			ID:          r.ID,
			Kind:        model.NotificationKind(r.Kind),
			Unread:      r.Unread,
			Title:       r.Title,
			Description: r.Description,
			TargetLink:  r.TargetLink,
			FetchedAt:   r.FetchedAt,
		})
	}
	return items, nil
}

// MarkNotificationRead flips a single cached item to read.
func (s *SQLiteStore) MarkNotificationRead(
	ctx context.Context,
	kind model.NotificationKind,
	id string,
) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET unread = 0 WHERE kind = ? AND id = ?",
		string(kind), id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s/%s as read: %w", kind, id, err)
	}
	return nil
}

// MarkAllNotificationsRead flips every cached item to read.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE notifications SET unread = 0"); err != nil {
		return fmt.Errorf("marking all notifications as read: %w", err)
	}
	return nil
}

// Wipe removes the cached preview, counters and settings.
func (s *SQLiteStore) Wipe(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"notifications", "counters", "settings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("wiping %s: %w", table, err)
		}
	}
	return tx.Commit()
}
