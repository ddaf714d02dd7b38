package prefs

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/lighthouse/internal/timeutil"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists preferences in a local SQLite database. Commit writes
// every staged change in one transaction with synchronous=FULL, so a returned
// Commit has reached the disk.
type SQLiteStore struct {
	db     *sql.DB
	staged staging
	clock  timeutil.Clock
	closed bool
}

// sqliteDSN enables the pragmas the store relies on for every connection.
func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)", path)
}

// OpenSQLiteStore opens (or creates) the database at path and migrates its
// schema to the latest version.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	s, err := OpenSQLiteUnmigrated(path)
	if err != nil {
		return nil, err
	}
	if err := s.MigrateUp(); err != nil {
		s.db.Close()
		return nil, unavailable("migrate", path, err)
	}
	return s, nil
}

// OpenSQLiteUnmigrated opens the database at path without touching its
// schema. It is meant for migration tooling; the store methods fail until the
// schema is at a version that has the preferences table.
func OpenSQLiteUnmigrated(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, unavailable("open", path, err)
	}
	// One writer: the store is single-process and single-threaded.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, unavailable("open", path, err)
	}
	return &SQLiteStore{db: db, staged: make(staging), clock: timeutil.RealClock{}}, nil
}

// DB exposes the underlying handle for schema tooling.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Get returns the value for key.
func (s *SQLiteStore) Get(key string) (string, bool, error) {
	if s.closed {
		return "", false, unavailable("get", key, errClosed)
	}
	if v, ok, staged := s.staged.lookup(key); staged {
		return v, ok, nil
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get", key, err)
	}
	return value, true, nil
}

// Set stages value under key.
func (s *SQLiteStore) Set(key, value string) error {
	if s.closed {
		return unavailable("set", key, errClosed)
	}
	s.staged.set(key, value)
	return nil
}

// Has reports whether key exists.
func (s *SQLiteStore) Has(key string) (bool, error) {
	_, ok, err := s.Get(key)
	return ok, err
}

// Delete stages removal of key.
func (s *SQLiteStore) Delete(key string) error {
	if s.closed {
		return unavailable("delete", key, errClosed)
	}
	s.staged.delete(key)
	return nil
}

// Commit writes staged changes in a single transaction.
func (s *SQLiteStore) Commit() error {
	if s.closed {
		return unavailable("commit", "", errClosed)
	}
	if len(s.staged) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return unavailable("commit", "", err)
	}
	defer tx.Rollback()

	nowNs := s.clock.Now().UnixNano()
	for key, v := range s.staged {
		if v == nil {
			if _, err := tx.Exec(`DELETE FROM preferences WHERE key = ?`, key); err != nil {
				return unavailable("commit", key, err)
			}
			continue
		}
		_, err := tx.Exec(`
			INSERT INTO preferences (key, value, updated_at_ns) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at_ns = excluded.updated_at_ns
		`, key, *v, nowNs)
		if err != nil {
			return unavailable("commit", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit", "", err)
	}
	s.staged.reset()
	return nil
}

// UpdatedAt returns when key was last committed.
func (s *SQLiteStore) UpdatedAt(key string) (time.Time, bool, error) {
	var ns int64
	err := s.db.QueryRow(`SELECT updated_at_ns FROM preferences WHERE key = ?`, key).Scan(&ns)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, unavailable("get", key, err)
	}
	return time.Unix(0, ns), true, nil
}

// Close closes the database. Staged changes are discarded.
func (s *SQLiteStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.staged.reset()
	return s.db.Close()
}
