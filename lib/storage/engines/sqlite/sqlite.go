package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/ValentinKolb/rKV/lib/storage"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	seq   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS items_seq ON items(seq);
`

// sqliteImpl stores items in a single table. seq records the insertion order
// and is kept when a key is overwritten.
type sqliteImpl struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Open opens (or creates) the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (storage.IBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storage.Errorf(storage.RetCInternalError, "failed to open %s: %v", path, err)
	}
	// one connection: writes are serialized anyway and ":memory:" is per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storage.Errorf(storage.RetCInternalError, "failed to create schema in %s: %v", path, err)
	}

	return &sqliteImpl{db: db, path: path}, nil
}

// guard takes the read lock unless the backend is closed. Close takes the
// write lock, so it waits for running operations.
func (s *sqliteImpl) guard() (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, errClosed
	}
	return s.mu.RUnlock, nil
}

func (s *sqliteImpl) wrap(op string, err error) error {
	return storage.Errorf(storage.RetCInternalError, "%s on %s: %v", op, s.path, err)
}

func (s *sqliteImpl) Len() (int, error) {
	release, err := s.guard()
	if err != nil {
		return 0, err
	}
	defer release()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		return 0, s.wrap("len", err)
	}
	return n, nil
}

func (s *sqliteImpl) Key(index int) (storage.Value, error) {
	release, err := s.guard()
	if err != nil {
		return storage.Absent, err
	}
	defer release()

	if index < 0 {
		return storage.Absent, nil
	}

	var key string
	err = s.db.QueryRow(`SELECT key FROM items ORDER BY seq LIMIT 1 OFFSET ?`, index).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Absent, nil
	}
	if err != nil {
		return storage.Absent, s.wrap(fmt.Sprintf("key(%d)", index), err)
	}
	return storage.ValueOf(key), nil
}

func (s *sqliteImpl) Get(key string) (storage.Value, error) {
	release, err := s.guard()
	if err != nil {
		return storage.Absent, err
	}
	defer release()

	var value string
	err = s.db.QueryRow(`SELECT value FROM items WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Absent, nil
	}
	if err != nil {
		return storage.Absent, s.wrap("get", err)
	}
	return storage.ValueOf(value), nil
}

func (s *sqliteImpl) Set(key, value string) error {
	release, err := s.guard()
	if err != nil {
		return err
	}
	defer release()

	_, err = s.db.Exec(`
		INSERT INTO items (key, value, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM items))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return s.wrap("set", err)
	}
	return nil
}

func (s *sqliteImpl) Remove(key string) error {
	release, err := s.guard()
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.db.Exec(`DELETE FROM items WHERE key = ?`, key); err != nil {
		return s.wrap("remove", err)
	}
	return nil
}

func (s *sqliteImpl) Clear() error {
	release, err := s.guard()
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.db.Exec(`DELETE FROM items`); err != nil {
		return s.wrap("clear", err)
	}
	return nil
}

func (s *sqliteImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var errClosed = storage.NewError(storage.RetCClosed, "sqlite backend is closed")
