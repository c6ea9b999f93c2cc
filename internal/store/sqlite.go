package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/notifeed/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

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

// SchemaVersion returns the highest applied migration version.
func (s *SQLiteStore) SchemaVersion() (int, error) {
	var v int
	if err := s.db.Get(&v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		currentVersion, err = s.SchemaVersion()
		if err != nil {
			return err
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

// HideNotification records key as hidden for userID. Hiding twice keeps the
// first timestamp.
func (s *SQLiteStore) HideNotification(
	ctx context.Context,
	userID string,
	key model.Key,
) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO hidden_notifications (user_id, notification_key, hidden_at)
		 VALUES (?, ?, ?)`,
		userID, string(key), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("hiding notification %s: %w", key, err)
	}
	return nil
}

// UnhideNotification makes key visible again.
func (s *SQLiteStore) UnhideNotification(
	ctx context.Context,
	userID string,
	key model.Key,
) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM hidden_notifications WHERE user_id = ? AND notification_key = ?",
		userID, string(key),
	)
	if err != nil {
		return fmt.Errorf("unhiding notification %s: %w", key, err)
	}
	return nil
}

// HiddenNotifications returns the keys hidden for userID.
func (s *SQLiteStore) HiddenNotifications(ctx context.Context, userID string) ([]model.Key, error) {
	var keys []model.Key
	err := s.db.SelectContext(ctx, &keys,
		"SELECT notification_key FROM hidden_notifications WHERE user_id = ? ORDER BY hidden_at",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying hidden notifications: %w", err)
	}
	return keys, nil
}

// ListHidden returns every hidden record of userID, most recent first.
func (s *SQLiteStore) ListHidden(ctx context.Context, userID string) ([]HiddenNotification, error) {
	var out []HiddenNotification
	err := s.db.SelectContext(ctx, &out,
		`SELECT user_id, notification_key, hidden_at FROM hidden_notifications
		 WHERE user_id = ? ORDER BY hidden_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing hidden notifications: %w", err)
	}
	return out, nil
}

// SaveUnreadCount caches the authoritative unread count of userID.
func (s *SQLiteStore) SaveUnreadCount(ctx context.Context, userID string, count int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO unread_counts (user_id, count, polled_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET count = excluded.count, polled_at = excluded.polled_at`,
		userID, count, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving unread count: %w", err)
	}
	return nil
}

// LastUnreadCount returns the cached unread count of userID, or nil if none
// was ever saved.
func (s *SQLiteStore) LastUnreadCount(ctx context.Context, userID string) (*UnreadSnapshot, error) {
	var snap UnreadSnapshot
	err := s.db.GetContext(ctx, &snap,
		"SELECT user_id, count, polled_at FROM unread_counts WHERE user_id = ?",
		userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading unread count: %w", err)
	}
	return &snap, nil
}
