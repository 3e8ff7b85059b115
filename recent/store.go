// Package recent persists recently viewed entities and recent search terms.
package recent

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Kind groups recent items.
type Kind string

const (
	KindEntity Kind = "entity"
	KindSearch Kind = "search"
)

// DefaultLimit is how many items of each kind are kept.
const DefaultLimit = 5

// Item is one recently used entity or search term.
type Item struct {
	Kind     Kind              `json:"kind"`
	Key      string            `json:"key"`
	Text     string            `json:"text"`
	Meta     map[string]string `json:"meta,omitempty"`
	Uses     int               `json:"uses"`
	LastUsed time.Time         `json:"lastUsed"`
}

const schema = `
CREATE TABLE IF NOT EXISTS recent_items (
	kind      TEXT NOT NULL,
	key       TEXT NOT NULL,
	text      TEXT NOT NULL DEFAULT '',
	meta      TEXT NOT NULL DEFAULT '{}',
	uses      INTEGER NOT NULL DEFAULT 1,
	seq       INTEGER NOT NULL,
	last_used DATETIME NOT NULL,
	PRIMARY KEY (kind, key)
);
`

// Store keeps the most recent items of each kind in SQLite.
type Store struct {
	db    *sql.DB
	limit int
}

// Open opens (or creates) the database at dbPath. limit caps each kind;
// zero means DefaultLimit. The caller is responsible for calling Close.
func Open(dbPath string, limit int) (*Store, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, limit: limit}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// Touch records a use of key, moving it to the front of its kind, and drops
// the items beyond the limit.
func (s *Store) Touch(kind Kind, key, text string, meta map[string]string) error {
	if key == "" {
		return fmt.Errorf("touch %s: empty key", kind)
	}
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, _ := json.Marshal(meta)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO recent_items (kind, key, text, meta, uses, seq, last_used)
		VALUES (?, ?, ?, ?, 1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM recent_items), ?)
		ON CONFLICT (kind, key) DO UPDATE SET
			text = excluded.text,
			meta = excluded.meta,
			uses = recent_items.uses + 1,
			seq = excluded.seq,
			last_used = excluded.last_used`,
		string(kind), key, text, string(metaJSON), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert recent item: %w", err)
	}

	_, err = tx.Exec(`
		DELETE FROM recent_items
		WHERE kind = ? AND key NOT IN (
			SELECT key FROM recent_items WHERE kind = ? ORDER BY seq DESC LIMIT ?
		)`,
		string(kind), string(kind), s.limit,
	)
	if err != nil {
		return fmt.Errorf("trim recent items: %w", err)
	}
	return tx.Commit()
}

// List returns up to limit items of kind, most recent first. A limit of
// zero returns every kept item.
func (s *Store) List(kind Kind, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = s.limit
	}
	rows, err := s.db.Query(`
		SELECT kind, key, text, meta, uses, last_used
		FROM recent_items WHERE kind = ?
		ORDER BY seq DESC LIMIT ?`,
		string(kind), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		var k, metaJSON string
		if err := rows.Scan(&k, &it.Key, &it.Text, &metaJSON, &it.Uses, &it.LastUsed); err != nil {
			return nil, err
		}
		it.Kind = Kind(k)
		_ = json.Unmarshal([]byte(metaJSON), &it.Meta)
		items = append(items, it)
	}
	return items, rows.Err()
}

// Remove deletes one item. Removing an unknown item is not an error.
func (s *Store) Remove(kind Kind, key string) error {
	if _, err := s.db.Exec(`DELETE FROM recent_items WHERE kind = ? AND key = ?`, string(kind), key); err != nil {
		return fmt.Errorf("remove recent item: %w", err)
	}
	return nil
}

// Clear deletes every item of kind.
func (s *Store) Clear(kind Kind) error {
	if _, err := s.db.Exec(`DELETE FROM recent_items WHERE kind = ?`, string(kind)); err != nil {
		return fmt.Errorf("clear recent items: %w", err)
	}
	return nil
}
