// Package settings persists per-user preferences in SQLite.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// KeyTranslate holds the user's target translation language or "off".
const KeyTranslate = "translate"

// Memory opens a private in-memory database.
const Memory = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS user_settings (
	user_id INTEGER NOT NULL,
	key     TEXT    NOT NULL,
	value   TEXT    NOT NULL,
	PRIMARY KEY (user_id, key)
)`

// Store is a process-wide key/value table keyed by user id. It is safe for
// concurrent use; the mutex covers each read-modify-write and is never held
// across network I/O.
type Store struct {
	db *sql.DB
	mu sync.Mutex
	// DefaultLanguage is returned by TranslationPreference for unknown users.
	DefaultLanguage string
}

// Open creates the database file and schema when missing.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("settings path is empty")
	}
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create settings dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open settings database: %w", err)
	}
	// One connection keeps :memory: a single database and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create settings schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping settings database: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored value, or def when the user never set key.
func (s *Store) Get(ctx context.Context, user int64, key, def string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM user_settings WHERE user_id = ? AND key = ?`, user, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s for %d: %w", key, user, err)
	}
	return v, nil
}

// Set stores value for key, replacing any previous value.
func (s *Store) Set(ctx context.Context, user int64, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, key) DO UPDATE SET value = excluded.value`,
		user, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s for %d: %w", key, user, err)
	}
	return nil
}

// Delete forgets key for the user.
func (s *Store) Delete(ctx context.Context, user int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM user_settings WHERE user_id = ? AND key = ?`, user, key); err != nil {
		return fmt.Errorf("delete setting %s for %d: %w", key, user, err)
	}
	return nil
}

// TranslationPreference returns the user's target language, DefaultLanguage
// when unset, or "off".
func (s *Store) TranslationPreference(ctx context.Context, user int64) (string, error) {
	return s.Get(ctx, user, KeyTranslate, s.DefaultLanguage)
}

// SetTranslationPreference stores a language code or "off".
func (s *Store) SetTranslationPreference(ctx context.Context, user int64, lang string) error {
	return s.Set(ctx, user, KeyTranslate, strings.ToLower(strings.TrimSpace(lang)))
}

// ImportJSON loads the legacy settings file format,
// {"<user id>": {"<key>": "<value>"}}, and returns the number of values
// written. Entries with non-numeric user ids are skipped.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	var data map[string]map[string]string
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return 0, fmt.Errorf("decode settings json: %w", err)
	}
	n := 0
	for id, values := range data {
		user, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		for k, v := range values {
			if err := s.Set(ctx, user, k, v); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
