package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-tenant-session/kvstore"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var _ kvstore.Store = (*SQLiteStore)(nil)

const schema = `CREATE TABLE IF NOT EXISTS kv_store (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// SQLiteStore is a durable long-lived store. Records written here survive process restarts,
// which is what lets a user's tenant sessions outlive any single client.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and ensures the schema exists.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Single writer; also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create kv_store table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewInMemory creates an in-memory SQLite store for testing
func NewInMemory() (*SQLiteStore, error) {
	return New(":memory:")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO kv_store (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove key %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM kv_store ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
