package spill

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const spillSchema = `
CREATE TABLE IF NOT EXISTS spill (
	run  TEXT NOT NULL,
	node TEXT NOT NULL,
	data BLOB NOT NULL,
	PRIMARY KEY (run, node)
)`

// SQLiteTier stores records in a SQLite table keyed by (run, node).
type SQLiteTier struct {
	db     *sql.DB
	owned  bool
	run    string
	closed bool
}

// OpenSQLiteTier opens (or creates) the database at path. An empty path uses
// a private in-memory database.
func OpenSQLiteTier(path string) (*SQLiteTier, error) {
	dsn := path
	if path == "" {
		dsn = ":memory:"
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create spill directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open spill database: %w", err)
	}
	// One connection: ":memory:" databases are per connection, and a search
	// is single threaded anyway.
	db.SetMaxOpenConns(1)

	t, err := NewSQLiteTier(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	t.owned = true
	return t, nil
}

// NewSQLiteTier creates a tier with a fresh run namespace on a shared
// database, creating the spill table if needed.
func NewSQLiteTier(db *sql.DB) (*SQLiteTier, error) {
	if _, err := db.Exec(spillSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize spill schema: %w", err)
	}
	return &SQLiteTier{db: db, run: uuid.New().String()}, nil
}

func (t *SQLiteTier) Save(key string, data []byte) error {
	if t.closed {
		return ErrTierClosed
	}
	_, err := t.db.Exec(
		`INSERT INTO spill (run, node, data) VALUES (?, ?, ?)
		 ON CONFLICT (run, node) DO UPDATE SET data = excluded.data`,
		t.run, key, data)
	return err
}

func (t *SQLiteTier) Load(key string) ([]byte, bool, error) {
	if t.closed {
		return nil, false, ErrTierClosed
	}
	var data []byte
	err := t.db.QueryRow(`SELECT data FROM spill WHERE run = ? AND node = ?`, t.run, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (t *SQLiteTier) Delete(key string) error {
	if t.closed {
		return ErrTierClosed
	}
	_, err := t.db.Exec(`DELETE FROM spill WHERE run = ? AND node = ?`, t.run, key)
	return err
}

func (t *SQLiteTier) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	_, err := t.db.Exec(`DELETE FROM spill WHERE run = ?`, t.run)
	if t.owned {
		if cerr := t.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
