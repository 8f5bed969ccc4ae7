// Package settings stores the small cross-launch state (last active chat,
// preferred model) in a sqlite key-value table.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lin/qichat/internal/domain"
)

const (
	keyLastActiveChat = "last_active_chat"
	keyPreferredModel = "preferred_model"
)

// Store is a sqlite-backed SettingsStore.
type Store struct {
	db   *sql.DB
	path string
}

var _ domain.SettingsStore = (*Store)(nil)

// Open opens (or creates) the settings database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open settings database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LastActiveChat returns the recorded conversation id, or "" when none.
func (s *Store) LastActiveChat(ctx context.Context) (string, error) {
	return s.get(ctx, keyLastActiveChat)
}

// SetLastActiveChat records the conversation to resume on next launch.
func (s *Store) SetLastActiveChat(ctx context.Context, id string) error {
	return s.set(ctx, keyLastActiveChat, id)
}

// ClearLastActiveChat forgets the recorded conversation.
func (s *Store) ClearLastActiveChat(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM config WHERE key = ?`, keyLastActiveChat)
	return err
}

// PreferredModel returns the stored model name, or "" when unset.
func (s *Store) PreferredModel(ctx context.Context) (string, error) {
	return s.get(ctx, keyPreferredModel)
}

// SetPreferredModel stores the model name.
func (s *Store) SetPreferredModel(ctx context.Context, model string) error {
	return s.set(ctx, keyPreferredModel, model)
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *Store) set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
