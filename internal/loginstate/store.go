// Package loginstate persists captured login cookies per platform so a
// restart can skip interactive login. Results are never stored here, only
// credentials.
package loginstate

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/FranksOps/magpie/internal/browser"
)

const schema = `
CREATE TABLE IF NOT EXISTS login_state (
	platform   TEXT PRIMARY KEY,
	cookies    TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// Store is a sqlite-backed cookie store keyed by canonical platform name.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open login state db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init login state schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save upserts the cookie set for a platform.
func (s *Store) Save(platform string, cookies []browser.Cookie) error {
	data, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("encode cookies for %s: %w", platform, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO login_state (platform, cookies, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(platform) DO UPDATE SET cookies = excluded.cookies, updated_at = excluded.updated_at`,
		platform, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save login state for %s: %w", platform, err)
	}
	return nil
}

// Load returns the stored cookies for a platform, or nil when none exist.
func (s *Store) Load(platform string) ([]browser.Cookie, error) {
	var data string
	err := s.db.QueryRow(`SELECT cookies FROM login_state WHERE platform = ?`, platform).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load login state for %s: %w", platform, err)
	}
	var cookies []browser.Cookie
	if err := json.Unmarshal([]byte(data), &cookies); err != nil {
		return nil, fmt.Errorf("decode login state for %s: %w", platform, err)
	}
	return cookies, nil
}

// Delete removes the stored cookies for a platform. Deleting an absent
// platform is not an error.
func (s *Store) Delete(platform string) error {
	if _, err := s.db.Exec(`DELETE FROM login_state WHERE platform = ?`, platform); err != nil {
		return fmt.Errorf("delete login state for %s: %w", platform, err)
	}
	return nil
}

// Platforms lists platforms with stored state, ordered by name.
func (s *Store) Platforms() ([]string, error) {
	rows, err := s.db.Query(`SELECT platform FROM login_state ORDER BY platform`)
	if err != nil {
		return nil, fmt.Errorf("list login state: %w", err)
	}
	defer rows.Close()

	var platforms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan login state row: %w", err)
		}
		platforms = append(platforms, p)
	}
	return platforms, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
