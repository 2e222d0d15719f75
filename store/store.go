// Package store keeps records in a SQLite database so they outlive the
// process. Records are encoded with engine/wire and keyed by name.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/plfli/engine"
	"github.com/chazu/plfli/engine/wire"
)

var log = commonlog.GetLogger("plfli.store")

// ErrRecordNotFound indicates no record is stored under the requested key.
var ErrRecordNotFound = errors.New("record not found")

// Store is a keyed record database bound to one runtime. Records read back
// are created in that runtime.
type Store struct {
	db   *sql.DB
	path string
	rt   *engine.Runtime
	mu   sync.Mutex
}

// Entry describes a stored record without decoding it.
type Entry struct {
	Key     string
	Size    int
	Updated time.Time
}

// Open opens or creates the database at path. The parent directory is
// created when missing.
func Open(path string, rt *engine.Runtime) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		updated INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened record store %s", path)
	return &Store{db: db, path: path, rt: rt}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores r under key, replacing any previous record.
func (s *Store) Put(key string, r *engine.Record) error {
	data, err := wire.Marshal(s.rt, r)
	if err != nil {
		return fmt.Errorf("encoding record %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO records (key, data, updated) VALUES (?, ?, ?)",
		key, data, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving record %q: %w", key, err)
	}
	log.Debugf("stored record %q (%d bytes)", key, len(data))
	return nil
}

// Get returns a new record holding the term stored under key. The caller
// owns the record and should Erase it when done.
func (s *Store) Get(key string) (*engine.Record, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM records WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrRecordNotFound, key)
		}
		return nil, fmt.Errorf("querying record %q: %w", key, err)
	}

	r, err := wire.Unmarshal(s.rt, data)
	if err != nil {
		log.Warningf("record %q in %s is unreadable: %s", key, s.path, err)
		return nil, fmt.Errorf("decoding record %q: %w", key, err)
	}
	return r, nil
}

// Delete removes the record stored under key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM records WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("deleting record %q: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrRecordNotFound, key)
	}
	return nil
}

// List returns the stored entries ordered by key.
func (s *Store) List() ([]Entry, error) {
	rows, err := s.db.Query("SELECT key, length(data), updated FROM records ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			updated int64
		)
		if err := rows.Scan(&e.Key, &e.Size, &updated); err != nil {
			return nil, fmt.Errorf("scanning record row: %w", err)
		}
		e.Updated = time.Unix(0, updated)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return entries, nil
}

// PutTerm records t on e and stores it under key.
func (s *Store) PutTerm(e *engine.Engine, key string, t engine.Term) error {
	r, err := e.Record(t)
	if err != nil {
		return fmt.Errorf("recording %q: %w", key, err)
	}
	defer s.rt.Erase(r)
	return s.Put(key, r)
}

// GetTerm unifies t with a fresh instance of the record stored under key.
// It returns false without error when the instance does not unify.
func (s *Store) GetTerm(e *engine.Engine, key string, t engine.Term) (bool, error) {
	r, err := s.Get(key)
	if err != nil {
		return false, err
	}
	defer s.rt.Erase(r)

	h := e.NewTermRef()
	if h == 0 || !e.Recorded(r, h) {
		return false, fmt.Errorf("instantiating record %q: %w", key, engine.ErrException)
	}
	return e.Unify(t, h), nil
}
